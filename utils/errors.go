package utils

import (
	"errors"
	"fmt"
)

// ErrProtocol is matched by every ProtocolError through errors.Is
var ErrProtocol = errors.New("protocol error")

// ProtocolError reports a call made out of the order a component requires,
// such as finishing a communication that was never started
type ProtocolError struct {
	Op  string
	Msg string
}

// NewProtocolError builds a ProtocolError for op
func NewProtocolError(op, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Is lets errors.Is(err, ErrProtocol) match any ProtocolError
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
