package probe

import (
	"errors"
	"fmt"
)

var (
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrSignalingError   = errors.New("signaling server error")
	ErrTimeout          = errors.New("timeout")
	ErrUnexpectedEcho   = errors.New("unexpected data channel message")
	ErrConnectionFailed = errors.New("connection failed")
)

// ProbeError records which probe operation failed.
type ProbeError struct {
	Op      string
	Err     error
	Details string
}

func (e *ProbeError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *ProbeError {
	return &ProbeError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *ProbeError {
	return &ProbeError{Op: op, Err: err, Details: details}
}
