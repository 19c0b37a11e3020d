package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type NonceResponse struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	Message string `json:"message"` // exact text the wallet must sign
}

type AuthResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}
