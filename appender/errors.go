package appender

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrInactive is returned by operations that need an activated appender.
var ErrInactive = errors.New("appender is not active")

// ErrorHandler receives failures the appender cannot return to the logging
// call site.
type ErrorHandler interface {
	Error(msg string, err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(msg string, err error)

func (f ErrorHandlerFunc) Error(msg string, err error) { f(msg, err) }

type logErrorHandler struct {
	instanceID string
}

func (h logErrorHandler) Error(msg string, err error) {
	log.Error().Str("appender", h.instanceID).Err(err).Msg(msg)
}
