package model

import "context"

type propertiesKey struct{}

// WithProperties returns a context carrying kv in addition to any
// properties already attached to ctx. Later values replace earlier ones.
func WithProperties(ctx context.Context, kv map[string]any) context.Context {
	merged := make(map[string]any, len(kv))
	for k, v := range PropertiesFrom(ctx) {
		merged[k] = v
	}
	for k, v := range kv {
		merged[k] = v
	}
	return context.WithValue(ctx, propertiesKey{}, merged)
}

// WithProperty is WithProperties for a single key.
func WithProperty(ctx context.Context, key string, value any) context.Context {
	return WithProperties(ctx, map[string]any{key: value})
}

// PropertiesFrom returns the properties attached to ctx. The returned map
// must not be modified.
func PropertiesFrom(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	m, _ := ctx.Value(propertiesKey{}).(map[string]any)
	return m
}
