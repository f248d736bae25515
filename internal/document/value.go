package document

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Native converts v into a value the BSON encoder stores with a native type.
// Scalars, times and BSON values pass through. Errors become their message.
// slog values and attribute groups are unpacked. Anything else (maps,
// structs, slices) is round-tripped through the BSON codec so it is stored as
// a nested document or array instead of a string. Stringers without exported
// fields use String. Values the codec rejects (channels, funcs) fall back to
// their fmt representation, as do values with reference cycles or nesting
// deeper than MongoDB accepts.
func Native(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bson.D, bson.A, bson.M:
		if s := inspect(v); !s.encodable() {
			return text(v, s)
		}
		return v
	case string, bool, int32, int64, float64, time.Time,
		bson.Raw, bson.RawValue, bson.ObjectID,
		bson.DateTime, bson.Decimal128, bson.Binary, bson.Regex, bson.Timestamp,
		[]byte:
		return v
	case int:
		return int64(t)
	case int8:
		return int32(t)
	case int16:
		return int32(t)
	case uint8:
		return int32(t)
	case uint16:
		return int32(t)
	case uint32:
		return int64(t)
	case uint:
		return unsigned(uint64(t))
	case uint64:
		return unsigned(t)
	case float32:
		return float64(t)
	case time.Duration:
		return t.String()
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	case error:
		return t.Error()
	case slog.Value:
		return slogValue(t)
	case []slog.Attr:
		return attrsDocument(t)
	case fmt.Stringer:
		// Prefer the string form unless the value has exported structure.
		if inspect(v).encodable() {
			if d, ok := roundTrip(v); ok {
				if doc, isDoc := d.(bson.D); isDoc && len(doc) > 0 {
					return doc
				}
			}
		}
		return t.String()
	default:
		s := inspect(v)
		if !s.encodable() {
			return text(v, s)
		}
		if d, ok := roundTrip(v); ok {
			return d
		}
		return fmt.Sprintf("%v", v)
	}
}

func text(v any, s shape) string {
	if s.printable() {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%T(cyclic)", v)
}

func unsigned(n uint64) any {
	if n > math.MaxInt64 {
		return float64(n)
	}
	return int64(n)
}

func slogValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		return attrsDocument(v.Group())
	case slog.KindTime:
		return v.Time()
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return Native(v.Any())
	}
}

func attrsDocument(attrs []slog.Attr) bson.D {
	doc := make(bson.D, 0, len(attrs))
	for _, a := range attrs {
		if a.Key == "" && a.Value.Kind() != slog.KindGroup {
			continue
		}
		doc = Set(doc, a.Key, slogValue(a.Value))
	}
	return doc
}

// roundTrip encodes v inside a wrapper document and decodes it back, which
// yields bson.D for documents, bson.A for arrays and native scalars.
func roundTrip(v any) (any, bool) {
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return nil, false
	}
	var out struct {
		V any `bson:"v"`
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out.V, true
}
