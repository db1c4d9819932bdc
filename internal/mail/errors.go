package mail

import (
	"errors"
	"fmt"
)

// TransportError indicates the mailbox server was unreachable or the
// connection dropped mid-operation. Callers retry these later; they are
// never fatal.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// ParseError indicates a fetched message could not be turned into a
// Message. The message is dropped.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "mail parse: " + e.Reason
	}
	return fmt.Sprintf("mail parse: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err (or any error in its chain) is a
// ParseError.
func IsParseError(err error) bool {
	var pErr *ParseError
	return errors.As(err, &pErr)
}
