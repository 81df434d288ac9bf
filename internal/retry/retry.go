package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"gorm.io/gorm"
)

// Class separates errors the engine may retry from those it must not.
type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

// Decision is the classification result for one error.
type Decision struct {
	Class  Class
	Reason string
}

func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string { return e.err.Error() }

func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err so Classify reports it retriable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient, reason: "explicit_transient"}
}

// Terminal marks err so Classify never retries it.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal, reason: "explicit_terminal"}
}

var transientMessageTokens = []string{
	"serialization failure",
	"could not serialize access",
	"deadlock",
	"duplicate key",
	"unique constraint",
	"sqlstate 23505",
	"sqlstate 40001",
	"sqlstate 40p01",
	"connection refused",
	"connection reset",
	"broken pipe",
	"bad connection",
	"too many connections",
	"i/o timeout",
	"unexpected eof",
}

var terminalMessageTokens = []string{
	"syntax error",
	"does not exist",
	"violates foreign key",
	"invalid input syntax",
}

// Classify decides whether an error is worth another attempt. Explicit
// marks win; unmarked errors fall through sentinel, network, and message
// checks. Unknown errors default to transient so they surface as a
// bounded retry exhausting into a network-error outcome rather than a
// silent drop.
func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Decision{Class: ClassTransient, Reason: "duplicate_key"}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Decision{Class: ClassTerminal, Reason: "record_not_found"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTransient, Reason: "unknown_transient_default"}
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
