package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// AppName identifies the appender's connections in server logs.
const AppName = "log4mongo-go"

// Server error codes.
const (
	namespaceExists       = 48
	indexOptionsConflict  = 85
	indexKeySpecsConflict = 86
)

// Client is a Session backed by the MongoDB driver.
type Client struct {
	client *mongo.Client
}

// Dial connects to uri. The driver connects lazily, so Dial only fails on
// invalid options; unreachable servers surface on the first operation.
func Dial(_ context.Context, uri string) (Session, error) {
	c, err := mongo.Connect(options.Client().ApplyURI(uri).SetAppName(AppName))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	return &Client{client: c}, nil
}

// Database returns a handle on the named database.
func (c *Client) Database(name string) Database {
	return &mongoDatabase{db: c.client.Database(name)}
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Mongo returns the underlying driver client.
func (c *Client) Mongo() *mongo.Client { return c.client }

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) Name() string { return d.db.Name() }

func (d *mongoDatabase) CollectionExists(ctx context.Context, name string) (bool, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (d *mongoDatabase) CreateCollection(ctx context.Context, name string, opts CollectionOptions) error {
	co := options.CreateCollection()
	if opts.Capped {
		co.SetCapped(true).SetSizeInBytes(opts.SizeInBytes)
		if opts.MaxDocuments > 0 {
			co.SetMaxDocuments(opts.MaxDocuments)
		}
	}

	if err := d.db.CreateCollection(ctx, name, co); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExists {
			return fmt.Errorf("create collection %s: %w", name, ErrCollectionExists)
		}
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

type collectionInfo struct {
	Name    string `bson:"name"`
	Options struct {
		Capped bool  `bson:"capped"`
		Size   int64 `bson:"size"`
		Max    int64 `bson:"max"`
	} `bson:"options"`
}

func (d *mongoDatabase) CollectionStats(ctx context.Context, name string) (CollectionStats, error) {
	cursor, err := d.db.ListCollections(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return CollectionStats{}, fmt.Errorf("list collections: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var info collectionInfo
		if err := cursor.Decode(&info); err != nil {
			return CollectionStats{}, fmt.Errorf("decode collection info: %w", err)
		}
		if info.Name != name {
			continue
		}
		return CollectionStats{
			Name:         info.Name,
			Capped:       info.Options.Capped,
			SizeInBytes:  info.Options.Size,
			MaxDocuments: info.Options.Max,
		}, nil
	}
	if err := cursor.Err(); err != nil {
		return CollectionStats{}, err
	}
	return CollectionStats{}, fmt.Errorf("collection %s not found", name)
}

type indexInfo struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	ExpireAfterSeconds *int64 `bson:"expireAfterSeconds,omitempty"`
}

func (d *mongoDatabase) Indexes(ctx context.Context, collection string) ([]Index, error) {
	cursor, err := d.db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var indexes []Index
	for cursor.Next(ctx) {
		var info indexInfo
		if err := cursor.Decode(&info); err != nil {
			return nil, fmt.Errorf("decode index info: %w", err)
		}
		indexes = append(indexes, Index{
			Name:               info.Name,
			Keys:               info.Key,
			ExpireAfterSeconds: info.ExpireAfterSeconds,
		})
	}
	return indexes, cursor.Err()
}

func (d *mongoDatabase) CreateTTLIndex(ctx context.Context, collection string, index TTLIndex) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: index.Field, Value: 1}},
		Options: options.Index().
			SetName(index.Name).
			SetExpireAfterSeconds(index.ExpireAfterSeconds),
	}
	if _, err := d.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && (cmdErr.Code == indexOptionsConflict || cmdErr.Code == indexKeySpecsConflict) {
			return fmt.Errorf("create index %s on %s: %w", index.Name, collection, ErrIndexExists)
		}
		return fmt.Errorf("create index %s on %s: %w", index.Name, collection, err)
	}
	return nil
}

func (d *mongoDatabase) InsertOne(ctx context.Context, collection string, doc bson.D) error {
	if _, err := d.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (d *mongoDatabase) InsertMany(ctx context.Context, collection string, docs []bson.D) error {
	batch := make([]any, len(docs))
	for i, doc := range docs {
		batch[i] = doc
	}
	if _, err := d.db.Collection(collection).InsertMany(ctx, batch); err != nil {
		return fmt.Errorf("insert %d documents into %s: %w", len(docs), collection, err)
	}
	return nil
}
