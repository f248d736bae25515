// Package jsonbson converts JSON text into BSON-ready values while keeping
// object key order.
package jsonbson

import (
	"github.com/valyala/fastjson"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var parsers fastjson.ParserPool

// Parse decodes data into bson.D, bson.A, string, int64, float64, bool or nil.
func Parse(data []byte) (any, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	// The parser owns v's memory, so convert before returning it to the pool.
	return Value(v), nil
}

// Value converts an already parsed fastjson value.
func Value(v *fastjson.Value) any {
	if v == nil {
		return nil
	}

	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		doc := bson.D{}
		o.Visit(func(key []byte, val *fastjson.Value) {
			doc = append(doc, bson.E{Key: string(key), Value: Value(val)})
		})
		return doc
	case fastjson.TypeArray:
		items, _ := v.Array()
		arr := make(bson.A, 0, len(items))
		for _, item := range items {
			arr = append(arr, Value(item))
		}
		return arr
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
