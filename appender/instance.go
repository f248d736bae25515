package appender

import "github.com/google/uuid"

// newInstanceID returns the identifier attached to an appender's diagnostics
// so reports from several appenders in one process can be told apart.
func newInstanceID() string {
	return uuid.New().String()
}
