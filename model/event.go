// Package model holds the log event shape the appender reads. Events are
// created by the host logging pipeline (the slog handler, the ingest server or
// a direct caller) and are never modified by the appender.
package model

import (
	"sort"
	"time"
)

// Event represents a structured log entry as handed to the appender.
type Event struct {
	Timestamp  time.Time
	Level      string
	Thread     string
	UserName   string
	Message    string
	LoggerName string
	Domain     string

	// Location is nil when the call site was not captured.
	Location *Location

	// Error is the attached error, if any. Chains are followed with
	// errors.Unwrap.
	Error error

	Properties Properties
}

// Location describes the call site that produced an event.
type Location struct {
	File   string
	Method string
	Line   int
	Class  string
}

// Properties carries the two property scopes of an event. Global holds
// process or logger wide values, Thread holds values bound to the call
// (context values and record attributes).
type Properties struct {
	Global map[string]any
	Thread map[string]any
}

// Len returns the number of distinct keys across both scopes.
func (p Properties) Len() int {
	if len(p.Thread) == 0 {
		return len(p.Global)
	}
	n := len(p.Thread)
	for k := range p.Global {
		if _, ok := p.Thread[k]; !ok {
			n++
		}
	}
	return n
}

// Lookup returns the value for key, preferring the thread scope.
func (p Properties) Lookup(key string) (any, bool) {
	if v, ok := p.Thread[key]; ok {
		return v, true
	}
	v, ok := p.Global[key]
	return v, ok
}

// Merged returns both scopes as one map; thread values win on collision.
func (p Properties) Merged() map[string]any {
	out := make(map[string]any, len(p.Global)+len(p.Thread))
	for k, v := range p.Global {
		out[k] = v
	}
	for k, v := range p.Thread {
		out[k] = v
	}
	return out
}

// Keys returns the merged key set in sorted order.
func (p Properties) Keys() []string {
	merged := p.Merged()
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
