package transport

import (
	"fmt"
)

// 传输层错误定义
var (
	ErrServerClosed = NewRelayError(1001, "Server closed", "")
)

type relayError struct {
	code    int
	msg     string
	context string
	cause   error
}

func (e *relayError) Error() string {
	s := fmt.Sprintf("Error %d: %s", e.code, e.msg)
	if e.context != "" {
		s += fmt.Sprintf(" (context: %s)", e.context)
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *relayError) Unwrap() error { return e.cause }

// Is matches on code so wrapped copies compare equal to the sentinels.
func (e *relayError) Is(target error) bool {
	t, ok := target.(*relayError)
	return ok && t.code == e.code
}

func (e *relayError) Code() int { return e.code }

func NewRelayError(code int, message string, context string) *relayError {
	return &relayError{
		code:    code,
		msg:     message,
		context: context,
	}
}

func listenError(addr string, cause error) error {
	return &relayError{code: 1002, msg: "Listen failed", context: addr, cause: cause}
}

// ErrListen matches any bind failure returned by Listen.
var ErrListen = NewRelayError(1002, "Listen failed", "")
