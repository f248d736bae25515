package appender

import (
	"github.com/log4mongo/log4mongo-go/internal/document"
	"github.com/log4mongo/log4mongo-go/layout"
)

// DefaultCollectionName is used when Options.CollectionName is empty.
const DefaultCollectionName = "logs"

// Field is one configured document field: a name and the layout producing
// its value.
type Field = document.Field

// FieldBehavior selects how configured fields combine with the standard
// document.
type FieldBehavior = document.Behavior

const (
	// Explicit stores only the configured fields; with no fields configured
	// it stores the standard document.
	Explicit = document.Explicit
	// Additive stores the standard document with the configured fields
	// overlaid on it.
	Additive = document.Additive
	// Legacy behaves like Additive. It exists for configurations written
	// before the behavior option.
	Legacy = document.Legacy
)

// ParseFieldBehavior parses "explicit", "additive" or "legacy".
func ParseFieldBehavior(s string) (FieldBehavior, error) {
	return document.ParseBehavior(s)
}

// NewField builds a field from a layout.Spec.
func NewField(name string, spec layout.Spec) (Field, error) {
	l, err := layout.New(spec)
	if err != nil {
		return Field{}, err
	}
	return Field{Name: name, Layout: l}, nil
}

// ConnectionStrings resolves named connection strings.
type ConnectionStrings interface {
	Lookup(name string) (string, bool)
}

// Options configure an Appender.
type Options struct {
	// ConnectionString is a mongodb:// URI. A database in its path selects
	// the database; otherwise DatabaseName or "log4net" is used.
	ConnectionString string
	// ConnectionStringName refers to an entry of ConnectionStrings and wins
	// over ConnectionString when the entry exists and is not empty.
	ConnectionStringName string
	ConnectionStrings    ConnectionStrings

	// CollectionName defaults to "logs".
	CollectionName string

	// NewCollectionMaxSize caps a newly created collection, in bytes or with
	// a k/MB suffix. Unparseable values leave the collection uncapped.
	NewCollectionMaxSize string
	// NewCollectionMaxDocs limits the document count of a capped collection.
	// It has no effect without NewCollectionMaxSize.
	NewCollectionMaxDocs string
	// ExpireAfterSeconds adds a TTL index on timestamp when positive.
	ExpireAfterSeconds int

	Fields        []Field
	FieldBehavior FieldBehavior

	// MachineName overrides the host name stored in standard documents.
	MachineName string

	// ErrorHandler receives activation and write failures. Defaults to the
	// zerolog logger.
	ErrorHandler ErrorHandler

	// Deprecated: use ConnectionString.
	Host string
	// Deprecated: use ConnectionString.
	Port int
	// DatabaseName is used when the connection string names no database.
	DatabaseName string
	// Deprecated: use ConnectionString.
	UserName string
	// Deprecated: use ConnectionString.
	Password string
}

func (o Options) collectionName() string {
	if o.CollectionName == "" {
		return DefaultCollectionName
	}
	return o.CollectionName
}
