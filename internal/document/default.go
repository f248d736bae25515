package document

import (
	"errors"
	"os"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/log4mongo/log4mongo-go/model"
)

// DefaultBuilder produces the standard document holding every intrinsic
// field of an event.
type DefaultBuilder struct {
	machineName string
}

// NewDefaultBuilder returns a builder stamping documents with machineName,
// or with the local host name when machineName is empty.
func NewDefaultBuilder(machineName string) *DefaultBuilder {
	if machineName == "" {
		machineName, _ = os.Hostname()
	}
	return &DefaultBuilder{machineName: machineName}
}

// MachineName returns the host name written to documents.
func (b *DefaultBuilder) MachineName() string { return b.machineName }

// Build returns the standard document for e, or nil for a nil event.
func (b *DefaultBuilder) Build(e *model.Event) bson.D {
	if e == nil {
		return nil
	}

	doc := bson.D{
		{Key: "timestamp", Value: e.Timestamp},
		{Key: "level", Value: e.Level},
		{Key: "thread", Value: e.Thread},
		{Key: "userName", Value: e.UserName},
		{Key: "message", Value: e.Message},
		{Key: "loggerName", Value: e.LoggerName},
		{Key: "domain", Value: e.Domain},
		{Key: "machineName", Value: b.machineName},
	}

	// location information, if available
	if loc := e.Location; loc != nil {
		doc = append(doc,
			bson.E{Key: "fileName", Value: loc.File},
			bson.E{Key: "method", Value: loc.Method},
			bson.E{Key: "lineNumber", Value: loc.Line},
			bson.E{Key: "className", Value: loc.Class},
		)
	}

	if e.Error != nil {
		doc = append(doc, bson.E{Key: "exception", Value: ExceptionDocument(e.Error)})
	}

	if e.Properties.Len() > 0 {
		merged := e.Properties.Merged()
		props := make(bson.D, 0, len(merged))
		for _, k := range e.Properties.Keys() {
			props = append(props, bson.E{Key: k, Value: Native(merged[k])})
		}
		doc = append(doc, bson.E{Key: "properties", Value: props})
	}

	return doc
}

// ExceptionDocument describes err and, recursively, the error it wraps.
func ExceptionDocument(err error) bson.D {
	doc := bson.D{
		{Key: "message", Value: err.Error()},
		{Key: "source", Value: model.ErrorSource(err)},
		{Key: "stackTrace", Value: model.ErrorStack(err)},
	}
	if inner := errors.Unwrap(err); inner != nil {
		doc = append(doc, bson.E{Key: "innerException", Value: ExceptionDocument(inner)})
	}
	return doc
}
