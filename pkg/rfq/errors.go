package rfq

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an order hash is unknown to the store.
var ErrNotFound = errors.New("order does not exist")

// ErrDuplicateOrder is returned by Insert when the hash is already present.
// Hash generation is salted, so hitting this indicates an internal invariant
// violation rather than caller error.
var ErrDuplicateOrder = errors.New("duplicate order hash")

// InvalidTransitionError reports an attempted state change from a state
// outside the allowed set, e.g. filling an already-cancelled order.
type InvalidTransitionError struct {
	OrderHash string
	Current   State
	Attempted State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s is no longer open: cannot transition %s -> %s",
		e.OrderHash, e.Current, e.Attempted)
}

// FieldError describes a single violated field in an RFQ request.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every violated field of a malformed RFQ request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "invalid RFQ request: " + strings.Join(parts, "; ")
}
