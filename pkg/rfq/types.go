package rfq

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// State is an order's lifecycle state. Every state except StateOpen is
// terminal: once left, Open is never re-entered.
type State int

const (
	StateOpen State = iota
	StateFilled
	StateCancelled
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFilled:
		return "FILLED"
	case StateCancelled:
		return "CANCELLED"
	case StateExpired:
		return "EXPIRED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is accepted from s.
func (s State) Terminal() bool {
	return s != StateOpen
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "OPEN":
		*s = StateOpen
	case "FILLED":
		*s = StateFilled
	case "CANCELLED":
		*s = StateCancelled
	case "EXPIRED":
		*s = StateExpired
	default:
		return fmt.Errorf("unknown order state %q", str)
	}
	return nil
}

// Party is one leg of a trade. Immutable once attached to an order.
type Party struct {
	Wallet  string   // opaque wallet identifier
	TokenID string
	Amount  *big.Int // non-negative, arbitrary precision
}

type partyWire struct {
	Wallet  string `json:"wallet"`
	TokenID string `json:"tokenId"`
	Amount  string `json:"amount"`
}

// Amounts cross the wire as decimal strings so arbitrary precision survives
// JSON number handling in clients.
func (p Party) MarshalJSON() ([]byte, error) {
	amt := "0"
	if p.Amount != nil {
		amt = p.Amount.String()
	}
	return json.Marshal(partyWire{Wallet: p.Wallet, TokenID: p.TokenID, Amount: amt})
}

func (p *Party) UnmarshalJSON(b []byte) error {
	var w partyWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	amt, ok := new(big.Int).SetString(w.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid party amount %q", w.Amount)
	}
	p.Wallet = w.Wallet
	p.TokenID = w.TokenID
	p.Amount = amt
	return nil
}

func (p Party) clone() Party {
	cp := p
	if p.Amount != nil {
		cp.Amount = new(big.Int).Set(p.Amount)
	}
	return cp
}

// Order is a two-legged proposed trade created from an RFQ. The signer leg
// is the synthesized maker side, the sender leg is the requester. Only State
// and UpdatedAt change after creation; everything else is immutable.
type Order struct {
	OrderHash string        `json:"orderHash"`
	Nonce     int64         `json:"nonce"`  // creation instant, unix millis; display/ordering only
	Expiry    int64         `json:"expiry"` // unix seconds; not fillable past this
	Signer    Party         `json:"signer"`
	Sender    Party         `json:"sender"`
	Proof     hexutil.Bytes `json:"proof"` // opaque; produced and verified externally
	State     State         `json:"state"`
	CreatedAt int64         `json:"createdAt"` // unix millis
	UpdatedAt int64         `json:"updatedAt"` // unix millis, refreshed on every transition
}

// Clone deep-copies the order so callers never alias store-owned memory.
func (o Order) Clone() Order {
	cp := o
	cp.Signer = o.Signer.clone()
	cp.Sender = o.Sender.clone()
	if o.Proof != nil {
		cp.Proof = append(hexutil.Bytes(nil), o.Proof...)
	}
	return cp
}

// ComputeOrderHash derives the order identifier as keccak-256 over the
// canonical order fields plus a fresh random salt. The salt keeps hashes
// unique even for byte-identical concurrent RFQs.
func ComputeOrderHash(nonce, expiry int64, signer, sender Party) string {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, nonce)
	binary.Write(&buf, binary.BigEndian, expiry)
	for _, p := range []Party{signer, sender} {
		buf.WriteString(p.Wallet)
		buf.WriteByte(0)
		buf.WriteString(p.TokenID)
		buf.WriteByte(0)
		if p.Amount != nil {
			buf.Write(p.Amount.Bytes())
		}
		buf.WriteByte(0)
	}
	salt := uuid.New()
	buf.Write(salt[:])
	return crypto.Keccak256Hash(buf.Bytes()).Hex()
}
