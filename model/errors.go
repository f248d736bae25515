package model

import (
	"fmt"
	"strings"
)

// ErrorSource names where err came from: the Source method when the error
// has one, otherwise its dynamic type.
func ErrorSource(err error) string {
	if err == nil {
		return ""
	}
	if s, ok := err.(interface{ Source() string }); ok {
		return s.Source()
	}
	return fmt.Sprintf("%T", err)
}

// ErrorStack returns the stack trace recorded by err, or "" when it has none.
// Errors expose stacks through StackTrace() string or, as with
// github.com/pkg/errors, through the %+v verb of fmt.Formatter.
func ErrorStack(err error) string {
	if err == nil {
		return ""
	}
	if s, ok := err.(interface{ StackTrace() string }); ok {
		return s.StackTrace()
	}
	if _, ok := err.(fmt.Formatter); ok {
		full := fmt.Sprintf("%+v", err)
		if msg := err.Error(); strings.HasPrefix(full, msg) {
			return strings.TrimLeft(full[len(msg):], "\n")
		}
		return full
	}
	return ""
}
