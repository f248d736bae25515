// Package store is the narrow slice of a MongoDB deployment the appender
// uses: collection metadata, collection and index creation, and inserts.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrCollectionExists is returned by CreateCollection when another writer
// created the collection first.
var ErrCollectionExists = errors.New("collection already exists")

// ErrIndexExists is returned by CreateTTLIndex when an index with the same
// name or key already exists with other options.
var ErrIndexExists = errors.New("index already exists")

// CollectionOptions are the creation options of a new collection. SizeInBytes
// and MaxDocuments only apply to capped collections.
type CollectionOptions struct {
	Capped       bool
	SizeInBytes  int64
	MaxDocuments int64
}

// CollectionStats describe an existing collection as reported by the server.
type CollectionStats struct {
	Name         string
	Capped       bool
	SizeInBytes  int64
	MaxDocuments int64
}

// Index describes an existing index.
type Index struct {
	Name               string
	Keys               bson.D
	ExpireAfterSeconds *int64
}

// TTLIndex describes an expiring single-field index.
type TTLIndex struct {
	Name               string
	Field              string
	ExpireAfterSeconds int32
}

// Database is one database of a deployment.
type Database interface {
	Name() string
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, opts CollectionOptions) error
	CollectionStats(ctx context.Context, name string) (CollectionStats, error)
	Indexes(ctx context.Context, collection string) ([]Index, error)
	CreateTTLIndex(ctx context.Context, collection string, index TTLIndex) error
	InsertOne(ctx context.Context, collection string, doc bson.D) error
	InsertMany(ctx context.Context, collection string, docs []bson.D) error
}

// Session is an open connection to a deployment.
type Session interface {
	Database(name string) Database
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a Session for a connection URI.
type Dialer func(ctx context.Context, uri string) (Session, error)
