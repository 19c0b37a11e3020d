package chain

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var txHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// IsValidTxHash reports whether s looks like an Ethereum transaction hash.
func IsValidTxHash(s string) bool {
	return txHashRe.MatchString(s)
}

// Params configures one verification. Zero-valued optional fields skip
// their check.
type Params struct {
	ExpectedRecipient string  // required, compared case-insensitively
	ExpectedSender    string  // optional
	ExpectedAmountETH float64 // optional, checked within ToleranceETH
	ToleranceETH      float64
	MinConfirmations  uint64
	MinAmountETH      float64
}

// Result carries the verification outcome. On a failed check Valid is
// false and Err names the reason, but parsed fields are still populated
// for diagnostics where the chain data was readable.
type Result struct {
	Valid       bool      `json:"valid"`
	ETHAmount   float64   `json:"eth_amount"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
	Err         string    `json:"error,omitempty"`
}

type Verifier struct {
	client EthReader
	log    *zap.Logger
}

func NewVerifier(client EthReader, log *zap.Logger) *Verifier {
	return &Verifier{client: client, log: log}
}

// Verify checks an externally-submitted transaction against params.
// A non-nil error means the chain could not be consulted and the call is
// retryable; every policy failure comes back as Result{Valid: false}.
func (v *Verifier) Verify(ctx context.Context, txHash string, params Params) (*Result, error) {
	if !IsValidTxHash(txHash) {
		return &Result{Valid: false, Err: "malformed transaction hash"}, nil
	}

	hash := common.HexToHash(txHash)

	tx, pending, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &Result{Valid: false, Err: "Transaction not found"}, nil
		}
		return nil, err
	}
	if pending {
		return &Result{Valid: false, Err: "Transaction not yet mined"}, nil
	}

	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &Result{Valid: false, Err: "Transaction not yet mined"}, nil
		}
		return nil, err
	}
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return &Result{Valid: false, Err: "Transaction reverted on chain"}, nil
	}

	header, err := v.client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ETHAmount:   weiToETH(tx.Value()),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Timestamp:   time.Unix(int64(header.Time), 0).UTC(),
	}
	if to := tx.To(); to != nil {
		res.ToAddress = strings.ToLower(to.Hex())
	}
	if from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		res.FromAddress = strings.ToLower(from.Hex())
	}

	// Policy checks run against the populated result so a mismatch still
	// reports the parsed amount and addresses.
	switch {
	case res.ToAddress == "" || !strings.EqualFold(res.ToAddress, params.ExpectedRecipient):
		res.Err = "recipient does not match payment wallet " + strings.ToLower(params.ExpectedRecipient)
	case params.ExpectedSender != "" && !strings.EqualFold(res.FromAddress, params.ExpectedSender):
		res.Err = "sender does not match buyer " + strings.ToLower(params.ExpectedSender)
	case params.MinConfirmations > 0 && !v.hasConfirmations(ctx, receipt, params.MinConfirmations):
		res.Err = "insufficient confirmations"
	case params.MinAmountETH > 0 && res.ETHAmount < params.MinAmountETH:
		res.Err = "amount below minimum payment"
	case params.ExpectedAmountETH > 0 && abs(res.ETHAmount-params.ExpectedAmountETH) > params.ToleranceETH:
		res.Err = "amount does not match expected payment"
	default:
		res.Valid = true
	}

	if !res.Valid {
		v.log.Debug("transaction rejected",
			zap.String("tx_hash", txHash),
			zap.String("reason", res.Err),
			zap.Float64("eth_amount", res.ETHAmount),
		)
	}

	return res, nil
}

func (v *Verifier) hasConfirmations(ctx context.Context, receipt *ethtypes.Receipt, min uint64) bool {
	head, err := v.client.BlockNumber(ctx)
	if err != nil {
		return false
	}
	block := receipt.BlockNumber.Uint64()
	if head < block {
		return false
	}
	return head-block+1 >= min
}

func weiToETH(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
