package rfq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const maxWalletLen = 256

// mockProofSize matches the placeholder proof attached at creation. In a
// full deployment the proof is produced by the external proof server.
const mockProofSize = 64

// RFQRequest is the untrusted request-for-quote payload. Amounts are kept
// raw so validation can report string-vs-number and precision problems per
// field instead of failing the whole decode.
type RFQRequest struct {
	RequesterWallet string          `json:"requesterWallet"`
	BuyTokenID      string          `json:"buyTokenId"`
	SellTokenID     string          `json:"sellTokenId"`
	BuyAmount       json.RawMessage `json:"buyAmount"`
	SellAmount      json.RawMessage `json:"sellAmount"`
}

// QuoteResponse is the answer to a valid RFQ: the created Open order plus
// the instant (unix seconds) the quote stops being fillable.
type QuoteResponse struct {
	Order       Order `json:"order"`
	QuoteExpiry int64 `json:"quoteExpiry"`
}

// Engine turns untrusted RFQ requests into well-formed Open orders. The
// quote amount is a pass-through of the requested amount; the maker leg is
// a configured placeholder identity, not a priced counterparty.
type Engine struct {
	store       *Store
	makerWallet string
	ttl         time.Duration
	clk         clock.Clock
	log         *zap.Logger
}

func NewEngine(store *Store, makerWallet string, ttl time.Duration, clk clock.Clock, logger *zap.Logger) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:       store,
		makerWallet: makerWallet,
		ttl:         ttl,
		clk:         clk,
		log:         logger,
	}
}

// SubmitRFQ validates the request, synthesizes the counter-offer and inserts
// it as an Open order. No state is created if validation fails.
func (e *Engine) SubmitRFQ(req RFQRequest) (QuoteResponse, error) {
	buyAmount, sellAmount, verr := validateRFQ(req)
	if verr != nil {
		return QuoteResponse{}, verr
	}

	now := e.clk.Now()
	nonce := now.UnixMilli()
	expiry := now.Add(e.ttl).Unix()

	signer := Party{Wallet: e.makerWallet, TokenID: req.BuyTokenID, Amount: buyAmount}
	sender := Party{Wallet: req.RequesterWallet, TokenID: req.SellTokenID, Amount: sellAmount}

	order := Order{
		OrderHash: ComputeOrderHash(nonce, expiry, signer, sender),
		Nonce:     nonce,
		Expiry:    expiry,
		Signer:    signer,
		Sender:    sender,
		Proof:     mockProof(),
	}

	created, err := e.store.Insert(order)
	if err != nil {
		// Salted hashing makes duplicates unreachable; treat as a fatal
		// fault on this request, not a process crash.
		e.log.Error("order insert failed",
			zap.String("orderHash", order.OrderHash), zap.Error(err))
		return QuoteResponse{}, fmt.Errorf("creating order: %w", err)
	}

	e.log.Info("quote created",
		zap.String("orderHash", created.OrderHash),
		zap.String("requester", req.RequesterWallet),
		zap.String("buyToken", req.BuyTokenID),
		zap.String("sellToken", req.SellTokenID),
		zap.Int64("expiry", expiry))

	return QuoteResponse{Order: created, QuoteExpiry: expiry}, nil
}

func validateRFQ(req RFQRequest) (buy, sell *big.Int, _ *ValidationError) {
	var fields []FieldError

	switch {
	case req.RequesterWallet == "":
		fields = append(fields, FieldError{Field: "requesterWallet", Reason: "must not be empty"})
	case len(req.RequesterWallet) > maxWalletLen:
		fields = append(fields, FieldError{Field: "requesterWallet",
			Reason: fmt.Sprintf("must be at most %d characters", maxWalletLen)})
	}
	if req.BuyTokenID == "" {
		fields = append(fields, FieldError{Field: "buyTokenId", Reason: "must not be empty"})
	}
	if req.SellTokenID == "" {
		fields = append(fields, FieldError{Field: "sellTokenId", Reason: "must not be empty"})
	}

	buy, fields = parseAmount(req.BuyAmount, "buyAmount", fields)
	sell, fields = parseAmount(req.SellAmount, "sellAmount", fields)

	if len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}
	return buy, sell, nil
}

// parseAmount accepts a JSON string or number holding a non-negative
// integer. Missing amounts are rejected rather than defaulted.
func parseAmount(raw json.RawMessage, field string, fields []FieldError) (*big.Int, []FieldError) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, append(fields, FieldError{Field: field, Reason: "is required"})
	}

	literal := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, append(fields, FieldError{Field: field, Reason: "must be a numeric string or number"})
		}
		literal = s
	}

	amt, ok := new(big.Int).SetString(literal, 10)
	if !ok {
		return nil, append(fields, FieldError{Field: field, Reason: "must be a non-negative integer"})
	}
	if amt.Sign() < 0 {
		return nil, append(fields, FieldError{Field: field, Reason: "must not be negative"})
	}
	return amt, fields
}

func mockProof() hexutil.Bytes {
	proof := make(hexutil.Bytes, mockProofSize)
	for i := range proof {
		proof[i] = 0x01
	}
	return proof
}
