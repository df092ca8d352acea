package matchmaking

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks a malformed inbound request. It is reported
	// back to the sender and never changes state.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound marks a reference to a client id that is no longer
	// registered. It is an expected race, not a fault.
	ErrNotFound = errors.New("client not found")

	// ErrPreconditionFailed marks an action attempted in the wrong state,
	// e.g. an offer sent while not paired.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Error codes carried by outbound error notices.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeNotFound           = "not_found"
	CodePreconditionFailed = "precondition_failed"
	CodeInternal           = "internal"
)

// OpError records the operation and client an error happened for.
type OpError struct {
	Op       string
	ClientID string
	Err      error
	Details  string
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.ClientID != "" {
		msg = fmt.Sprintf("%s %s: %v", e.Op, e.ClientID, e.Err)
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newError(op, id string, err error, details string) *OpError {
	return &OpError{Op: op, ClientID: id, Err: err, Details: details}
}

// Code maps an error to the code sent in an error notice.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrPreconditionFailed):
		return CodePreconditionFailed
	default:
		return CodeInternal
	}
}
