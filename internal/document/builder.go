package document

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/log4mongo/log4mongo-go/layout"
	"github.com/log4mongo/log4mongo-go/model"
)

// Behavior selects how configured fields relate to the standard document.
type Behavior int

const (
	// Explicit stores only the configured fields, or the standard document
	// when no field is configured.
	Explicit Behavior = iota
	// Additive starts from the standard document and overlays the fields.
	Additive
	// Legacy is kept for configurations written before the behavior setting
	// existed. It overlays fields exactly like Additive.
	Legacy
)

func (b Behavior) String() string {
	switch b {
	case Explicit:
		return "explicit"
	case Additive:
		return "additive"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// ParseBehavior parses a configured behavior name; empty means Explicit.
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "explicit":
		return Explicit, nil
	case "additive":
		return Additive, nil
	case "legacy", "mergeunder":
		return Legacy, nil
	default:
		return Explicit, fmt.Errorf("unknown field behavior %q", s)
	}
}

// Field is one configured document field.
type Field struct {
	Name   string
	Layout layout.Layout
}

// Config configures a Builder.
type Config struct {
	Fields   []Field
	Behavior Behavior
	// MachineName overrides the host name of the standard document.
	MachineName string
	// OnFieldError is told about fields whose layout failed. The field is
	// left out of the document either way.
	OnFieldError func(field string, err error)
}

// Builder builds the document stored for each event.
type Builder struct {
	defaults     *DefaultBuilder
	fields       []Field
	behavior     Behavior
	onFieldError func(field string, err error)
}

// NewBuilder creates a Builder. Fields are copied.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		defaults:     NewDefaultBuilder(cfg.MachineName),
		fields:       append([]Field(nil), cfg.Fields...),
		behavior:     cfg.Behavior,
		onFieldError: cfg.OnFieldError,
	}
}

// Behavior reports the configured behavior.
func (b *Builder) Behavior() Behavior { return b.behavior }

// Defaults exposes the standard document builder.
func (b *Builder) Defaults() *DefaultBuilder { return b.defaults }

// Build returns the document for e, or nil for a nil event.
func (b *Builder) Build(e *model.Event) bson.D {
	if e == nil {
		return nil
	}

	switch b.behavior {
	case Additive, Legacy:
		return b.overlay(b.defaults.Build(e), e)
	default:
		if len(b.fields) == 0 {
			return b.defaults.Build(e)
		}
		return b.overlay(make(bson.D, 0, len(b.fields)), e)
	}
}

func (b *Builder) overlay(doc bson.D, e *model.Event) bson.D {
	for _, f := range b.fields {
		v, err := b.format(f, e)
		if err != nil {
			if b.onFieldError != nil {
				b.onFieldError(f.Name, err)
			}
			continue
		}
		if v == nil {
			continue
		}
		doc = Set(doc, f.Name, v)
	}
	return doc
}

func (b *Builder) format(f Field, e *model.Event) (v any, err error) {
	if f.Layout == nil {
		return nil, fmt.Errorf("field %q has no layout", f.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("field %q layout panicked: %v", f.Name, r)
		}
	}()

	v, err = f.Layout.Format(e)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return Native(v), nil
}
