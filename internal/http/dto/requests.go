package dto

type NonceRequest struct {
	Address string `json:"address"`
}

type VerifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type EarnRequest struct {
	Amount int64   `json:"amount"`
	Ref    *string `json:"ref,omitempty"`
}

type PurchaseCoinsRequest struct {
	ETHAmount float64 `json:"ethAmount"`
	TxHash    string  `json:"txHash"`
}

type DiceRequest struct {
	Prediction string `json:"prediction"` // high / low
}

type MarketplacePurchaseRequest struct {
	ListingID string  `json:"listingId"`
	Buyer     string  `json:"buyer"`
	AmountETH float64 `json:"amountEth"`
	TxHash    string  `json:"txHash"`
}
