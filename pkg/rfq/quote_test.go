package rfq

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

const testMaker = "0x1111111111111111111111111111111111111111111111111111111111111111"

func newTestEngine(t *testing.T) (*Engine, *Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	store := NewStore(mock)
	engine := NewEngine(store, testMaker, 60*time.Second, mock, nil)
	return engine, store, mock
}

func validRequest() RFQRequest {
	return RFQRequest{
		RequesterWallet: "w1",
		BuyTokenID:      "BTC",
		SellTokenID:     "USDC",
		BuyAmount:       json.RawMessage(`"100"`),
		SellAmount:      json.RawMessage(`"4500000"`),
	}
}

func TestSubmitRFQ(t *testing.T) {
	engine, store, mock := newTestEngine(t)

	quote, err := engine.SubmitRFQ(validRequest())
	if err != nil {
		t.Fatalf("SubmitRFQ: %v", err)
	}
	order := quote.Order

	if order.State != StateOpen {
		t.Errorf("state = %v, want OPEN", order.State)
	}
	if order.Sender.Wallet != "w1" || order.Sender.TokenID != "USDC" {
		t.Errorf("sender leg = %+v, want wallet w1 / token USDC", order.Sender)
	}
	if order.Sender.Amount.String() != "4500000" {
		t.Errorf("sender amount = %s, want 4500000", order.Sender.Amount)
	}
	if order.Signer.Wallet != testMaker || order.Signer.TokenID != "BTC" {
		t.Errorf("signer leg = %+v, want maker wallet / token BTC", order.Signer)
	}
	if order.Signer.Amount.String() != "100" {
		t.Errorf("signer amount = %s, want 100", order.Signer.Amount)
	}
	if order.Expiry <= mock.Now().Unix() {
		t.Errorf("expiry %d not in the future (now %d)", order.Expiry, mock.Now().Unix())
	}
	if quote.QuoteExpiry != order.Expiry {
		t.Errorf("quoteExpiry %d != order expiry %d", quote.QuoteExpiry, order.Expiry)
	}
	if !strings.HasPrefix(order.OrderHash, "0x") || len(order.OrderHash) != 66 {
		t.Errorf("orderHash %q is not a 0x-prefixed keccak digest", order.OrderHash)
	}
	if len(order.Proof) == 0 {
		t.Error("proof blob is empty")
	}

	stored, err := store.Get(order.OrderHash)
	if err != nil {
		t.Fatalf("created order not in store: %v", err)
	}
	if stored.State != StateOpen {
		t.Errorf("stored state = %v, want OPEN", stored.State)
	}
}

func TestSubmitRFQAmountForms(t *testing.T) {
	tests := []struct {
		name   string
		buy    string // raw JSON
		sell   string
		want   string // expected signer amount
		wantOK bool
	}{
		{"string amounts", `"100"`, `"4500000"`, "100", true},
		{"number amounts", `100`, `4500000`, "100", true},
		{"mixed forms", `"250"`, `9000`, "250", true},
		{"huge amount", `"123456789012345678901234567890"`, `"1"`, "123456789012345678901234567890", true},
		{"zero is allowed", `"0"`, `"0"`, "0", true},
		{"negative", `"-1"`, `"1"`, "", false},
		{"fractional", `100.5`, `"1"`, "", false},
		{"non-numeric string", `"lots"`, `"1"`, "", false},
		{"boolean", `true`, `"1"`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := newTestEngine(t)
			req := validRequest()
			req.BuyAmount = json.RawMessage(tt.buy)
			req.SellAmount = json.RawMessage(tt.sell)

			quote, err := engine.SubmitRFQ(req)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("SubmitRFQ: %v", err)
				}
				if quote.Order.Signer.Amount.String() != tt.want {
					t.Errorf("signer amount = %s, want %s", quote.Order.Signer.Amount, tt.want)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("SubmitRFQ = %v, want ValidationError", err)
			}
		})
	}
}

func TestSubmitRFQValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*RFQRequest)
		wantField string
	}{
		{"empty requester wallet", func(r *RFQRequest) { r.RequesterWallet = "" }, "requesterWallet"},
		{"oversized requester wallet", func(r *RFQRequest) { r.RequesterWallet = strings.Repeat("a", 257) }, "requesterWallet"},
		{"empty buy token", func(r *RFQRequest) { r.BuyTokenID = "" }, "buyTokenId"},
		{"empty sell token", func(r *RFQRequest) { r.SellTokenID = "" }, "sellTokenId"},
		{"missing buy amount", func(r *RFQRequest) { r.BuyAmount = nil }, "buyAmount"},
		{"missing sell amount", func(r *RFQRequest) { r.SellAmount = nil }, "sellAmount"},
		{"null sell amount", func(r *RFQRequest) { r.SellAmount = json.RawMessage(`null`) }, "sellAmount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store, _ := newTestEngine(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := engine.SubmitRFQ(req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("SubmitRFQ = %v, want ValidationError", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidationError fields %+v do not cite %q", verr.Fields, tt.wantField)
			}

			// Validation failure must leave no state behind.
			if n := len(store.ListAll()); n != 0 {
				t.Errorf("store holds %d orders after rejected RFQ, want 0", n)
			}
		})
	}
}

func TestSubmitRFQMultipleFieldErrors(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.SubmitRFQ(RFQRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("SubmitRFQ = %v, want ValidationError", err)
	}
	if len(verr.Fields) < 5 {
		t.Errorf("empty request produced %d field errors, want one per missing field: %+v",
			len(verr.Fields), verr.Fields)
	}
}

func TestSubmitRFQUniqueHashes(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	// Identical requests at the same mock instant must still get
	// distinct order hashes.
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		quote, err := engine.SubmitRFQ(validRequest())
		if err != nil {
			t.Fatalf("SubmitRFQ: %v", err)
		}
		if seen[quote.Order.OrderHash] {
			t.Fatalf("duplicate order hash %s", quote.Order.OrderHash)
		}
		seen[quote.Order.OrderHash] = true
	}
}

func TestOrderJSONRoundTrip(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	quote, err := engine.SubmitRFQ(validRequest())
	if err != nil {
		t.Fatalf("SubmitRFQ: %v", err)
	}

	data, err := json.Marshal(quote.Order)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Amounts travel as decimal strings, state as its display name, proof as
	// 0x-hex; the dashboard depends on this exact shape.
	for _, want := range []string{`"amount":"4500000"`, `"state":"OPEN"`, `"proof":"0x0101`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("order JSON missing %s: %s", want, data)
		}
	}

	var back Order
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Sender.Amount.String() != "4500000" || back.State != StateOpen {
		t.Errorf("round trip mismatch: %+v", back)
	}
}
