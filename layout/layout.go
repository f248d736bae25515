// Package layout provides the value producers behind configured document
// fields. Each layout renders one value from a log event; the appender stores
// that value under the field's name.
package layout

import (
	"fmt"
	"strings"

	"github.com/log4mongo/log4mongo-go/internal/jsonbson"
	"github.com/log4mongo/log4mongo-go/model"
)

// Layout renders a value from an event. A nil value means "no value" and
// leaves the field out of the document.
type Layout interface {
	Format(e *model.Event) (any, error)
}

// Func adapts a plain function to Layout.
type Func func(e *model.Event) (any, error)

func (f Func) Format(e *model.Event) (any, error) { return f(e) }

// RawTimeStamp yields the event time as a native date.
type RawTimeStamp struct{}

func (RawTimeStamp) Format(e *model.Event) (any, error) {
	return e.Timestamp, nil
}

// RawUTCTimeStamp yields the event time converted to UTC.
type RawUTCTimeStamp struct{}

func (RawUTCTimeStamp) Format(e *model.Event) (any, error) {
	return e.Timestamp.UTC(), nil
}

// RawProperty yields the untouched value of one event property, so numbers,
// dates and nested documents keep their type.
type RawProperty struct {
	Key string
}

func (l RawProperty) Format(e *model.Event) (any, error) {
	v, _ := e.Properties.Lookup(l.Key)
	return v, nil
}

// Exception renders the attached error chain as text, one error per line
// group, or nil when the event has no error.
type Exception struct{}

func (Exception) Format(e *model.Event) (any, error) {
	if e.Error == nil {
		return nil, nil
	}
	return RenderError(e.Error), nil
}

// RenderError formats an error chain as "source: message" blocks followed by
// their stack traces, inner errors introduced by " ---> ".
func RenderError(err error) string {
	var sb strings.Builder
	for depth := 0; err != nil; depth++ {
		if depth > 0 {
			sb.WriteString("\n ---> ")
		}
		sb.WriteString(model.ErrorSource(err))
		sb.WriteString(": ")
		sb.WriteString(err.Error())
		if stack := model.ErrorStack(err); stack != "" {
			sb.WriteByte('\n')
			sb.WriteString(stack)
		}
		err = unwrap(err)
	}
	return sb.String()
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

// Constant always yields the same value.
type Constant struct {
	Value any
}

func (l Constant) Format(*model.Event) (any, error) { return l.Value, nil }

// JSON parses the text produced by another layout as JSON, turning it into a
// nested document, an array or a scalar.
type JSON struct {
	Inner Layout
}

func (l JSON) Format(e *model.Event) (any, error) {
	v, err := l.Inner.Format(e)
	if err != nil || v == nil {
		return nil, err
	}

	var data []byte
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, nil
		}
		data = []byte(t)
	case []byte:
		data = t
	default:
		// Already structured.
		return v, nil
	}

	parsed, err := jsonbson.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse json field value: %w", err)
	}
	return parsed, nil
}
