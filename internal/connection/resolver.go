// Package connection works out which MongoDB deployment and database an
// appender writes to.
package connection

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

const (
	DefaultPort     = 27017
	DefaultDatabase = "log4net"
)

// ErrNoConnection means none of the configured sources yields a target.
var ErrNoConnection = errors.New("no connection string, connection string name or host configured")

// ConfigError reports an unusable connection configuration.
type ConfigError struct {
	Source Source
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == SourceNone {
		return "mongodb connection: " + e.Err.Error()
	}
	return fmt.Sprintf("mongodb connection (%s): %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Source tells which setting produced a target.
type Source int

const (
	SourceNone Source = iota
	SourceNamed
	SourceInline
	SourceLegacy
)

func (s Source) String() string {
	switch s {
	case SourceNamed:
		return "connection string name"
	case SourceInline:
		return "connection string"
	case SourceLegacy:
		return "host settings"
	default:
		return "none"
	}
}

// Lookup resolves named connection strings kept outside the appender's own
// settings.
type Lookup interface {
	Lookup(name string) (string, bool)
}

// Settings are the connection related appender options.
type Settings struct {
	ConnectionString     string
	ConnectionStringName string

	// Deprecated: use ConnectionString. Used only when neither connection
	// string setting yields a value.
	Host         string
	Port         int
	DatabaseName string
	UserName     string
	Password     string
}

// Target is a resolved connection.
type Target struct {
	URI      string
	Database string
	Source   Source
}

// Resolve picks the connection in priority order: the named entry, the
// inline connection string, then the legacy host settings.
func Resolve(s Settings, names Lookup) (Target, error) {
	if s.ConnectionStringName != "" && names != nil {
		if cs, ok := names.Lookup(s.ConnectionStringName); ok && strings.TrimSpace(cs) != "" {
			return target(cs, s.DatabaseName, SourceNamed)
		}
	}

	if cs := strings.TrimSpace(s.ConnectionString); cs != "" {
		return target(cs, s.DatabaseName, SourceInline)
	}

	if strings.TrimSpace(s.Host) != "" {
		return target(legacyURI(s), s.DatabaseName, SourceLegacy)
	}

	return Target{}, &ConfigError{Err: ErrNoConnection}
}

func target(uri, database string, src Source) (Target, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return Target{}, &ConfigError{Source: src, Err: err}
	}

	db := cs.Database
	if db == "" {
		db = database
	}
	if db == "" {
		db = DefaultDatabase
	}
	return Target{URI: uri, Database: db, Source: src}, nil
}

func legacyURI(s Settings) string {
	port := s.Port
	if port <= 0 {
		port = DefaultPort
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(strings.TrimSpace(s.Host), strconv.Itoa(port)),
		Path:   "/",
	}
	if s.UserName != "" && s.Password != "" {
		u.User = url.UserPassword(s.UserName, s.Password)
	}
	return u.String()
}
