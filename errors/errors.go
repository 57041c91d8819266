package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure into the categories the rest of the
// application dispatches on.
type Kind int

const (
	// KindNetwork covers connectivity problems and timeouts. Transient for
	// polling, user-visible for login/exchange/refresh.
	KindNetwork Kind = iota + 1
	// KindProtocol covers provider-signaled errors: an error query
	// parameter on the callback or a non-2xx status from the token,
	// userinfo or alerts endpoint.
	KindProtocol
	// KindDecode covers response bodies that do not match the expected shape.
	KindDecode
	// KindStorage covers secure-storage read/write/delete failures.
	KindStorage
	// KindState covers callbacks with no pending authorization request or a
	// request whose state nonce cannot be matched.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	case KindStorage:
		return "storage"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "oidc.exchange"
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func NewNetwork(op string, err error) *Error {
	return newError(KindNetwork, op, "", err)
}

func NewProtocol(op, message string) *Error {
	return newError(KindProtocol, op, message, nil)
}

func NewDecode(op string, err error) *Error {
	return newError(KindDecode, op, "", err)
}

func NewStorage(op, message string) *Error {
	return newError(KindStorage, op, message, nil)
}

func NewState(op, message string) *Error {
	return newError(KindState, op, message, nil)
}

// KindOf returns the Kind of err, or 0 if err is not a classified error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is, or wraps, a classified error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
