package purchase

import (
	"errors"
	"fmt"
)

// Kind classifies why a purchase did not happen. The set is closed; the
// transport layer maps each Kind to a user-facing message.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthRequired
	KindAuthFailed
	KindPropertyIDRequired
	KindBuyerNotFound
	KindPropertyNotFound
	KindInsufficientBalance
	KindOwnershipConflict
	KindContention
)

var kindNames = [...]string{
	KindInternal:            "internal",
	KindAuthRequired:        "auth_required",
	KindAuthFailed:          "auth_failed",
	KindPropertyIDRequired:  "property_id_required",
	KindBuyerNotFound:       "buyer_not_found",
	KindPropertyNotFound:    "property_not_found",
	KindInsufficientBalance: "insufficient_balance",
	KindOwnershipConflict:   "ownership_conflict",
	KindContention:          "contention",
}

// Kinds lists every Kind, in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}

	return out
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return kindNames[k]
}

// Error is a classified purchase failure. Err carries the underlying cause
// for logs and is never shown to callers.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "purchase: " + e.Kind.String()
	}

	return fmt.Sprintf("purchase: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Fail builds a classified error; used by callers that reject a request
// before it reaches the coordinator, e.g. failed authentication.
func Fail(kind Kind, cause error) error {
	return newError(kind, cause)
}

// KindOf returns the Kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}
