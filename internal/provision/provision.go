// Package provision makes sure the log collection exists with the configured
// capping and expiry before documents are written to it.
package provision

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/log4mongo/log4mongo-go/internal/store"
	"github.com/log4mongo/log4mongo-go/internal/units"
)

const (
	// TTLIndexName names the expiry index so later runs recognise it.
	TTLIndexName = "expireAfterSecondsIndex"
	// TTLField is the document field the expiry index is keyed on.
	TTLField = "timestamp"
)

// Spec is the collection configuration.
type Spec struct {
	// MaxSize is the capped size in bytes, plain or with a k/MB suffix.
	MaxSize string
	// MaxDocs caps the document count. It only applies together with MaxSize.
	MaxDocs string
	// ExpireAfterSeconds creates a TTL index on the timestamp field when > 0.
	ExpireAfterSeconds int
}

// Options resolves the creation options for a new collection. A collection is
// capped only when a positive size is configured.
func (s Spec) Options() store.CollectionOptions {
	maxSize := units.ResolveString(s.MaxSize)
	if maxSize <= 0 {
		return store.CollectionOptions{}
	}

	opts := store.CollectionOptions{Capped: true, SizeInBytes: maxSize}
	if maxDocs := units.ResolveString(s.MaxDocs); maxDocs > 0 {
		opts.MaxDocuments = maxDocs
	}
	return opts
}

// Result reports what Ensure changed.
type Result struct {
	Created      bool
	IndexCreated bool
	Options      store.CollectionOptions
}

// Ensure creates collection name in db when it does not exist yet and adds
// the TTL index when one is configured and missing. Calling it again for an
// existing, fully provisioned collection only reads metadata.
func Ensure(ctx context.Context, db store.Database, name string, spec Spec) (Result, error) {
	var res Result

	exists, err := db.CollectionExists(ctx, name)
	if err != nil {
		return res, fmt.Errorf("check collection %s: %w", name, err)
	}

	if !exists {
		res.Options = spec.Options()
		err := db.CreateCollection(ctx, name, res.Options)
		switch {
		case err == nil:
			res.Created = true
		case errors.Is(err, store.ErrCollectionExists):
			// Created concurrently by another writer.
		default:
			return res, err
		}
	}

	if spec.ExpireAfterSeconds <= 0 {
		return res, nil
	}

	created, err := ensureTTLIndex(ctx, db, name, spec.ExpireAfterSeconds)
	res.IndexCreated = created
	return res, err
}

func ensureTTLIndex(ctx context.Context, db store.Database, name string, seconds int) (bool, error) {
	indexes, err := db.Indexes(ctx, name)
	if err != nil {
		return false, err
	}
	for _, idx := range indexes {
		if idx.Name == TTLIndexName {
			return false, nil
		}
	}

	if seconds > math.MaxInt32 {
		seconds = math.MaxInt32
	}
	err = db.CreateTTLIndex(ctx, name, store.TTLIndex{
		Name:               TTLIndexName,
		Field:              TTLField,
		ExpireAfterSeconds: int32(seconds),
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrIndexExists):
		// Created concurrently by another writer.
		return false, nil
	default:
		return false, err
	}
}
