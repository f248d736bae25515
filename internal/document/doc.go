// Package document turns log events into BSON documents, either the standard
// document with every intrinsic event field or a document assembled from
// configured fields.
package document

import "go.mongodb.org/mongo-driver/v2/bson"

// Set assigns key in doc, replacing the value in place when the key is
// already present and appending otherwise.
func Set(doc bson.D, key string, value any) bson.D {
	for i := range doc {
		if doc[i].Key == key {
			doc[i].Value = value
			return doc
		}
	}
	return append(doc, bson.E{Key: key, Value: value})
}

// Lookup returns the value stored under key.
func Lookup(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys lists the keys of doc in order.
func Keys(doc bson.D) []string {
	keys := make([]string, len(doc))
	for i, e := range doc {
		keys[i] = e.Key
	}
	return keys
}
