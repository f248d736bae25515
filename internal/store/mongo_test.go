package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// testDatabase connects to LOG4MONGO_TEST_URI and returns a scratch database
// dropped at the end of the test.
func testDatabase(t *testing.T) Database {
	t.Helper()
	uri := os.Getenv("LOG4MONGO_TEST_URI")
	if uri == "" {
		t.Skip("LOG4MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := Dial(ctx, uri)
	require.NoError(t, err)

	client := session.(*Client)
	name := fmt.Sprintf("log4mongo_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Mongo().Database(name).Drop(ctx)
		_ = session.Close(ctx)
	})
	return session.Database(name)
}

func TestMongo_CappedCollection(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	exists, err := db.CollectionExists(ctx, "logs")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, db.CreateCollection(ctx, "logs", CollectionOptions{Capped: true, SizeInBytes: 65536, MaxDocuments: 5000}))

	exists, err = db.CollectionExists(ctx, "logs")
	require.NoError(t, err)
	assert.True(t, exists)

	stats, err := db.CollectionStats(ctx, "logs")
	require.NoError(t, err)
	assert.True(t, stats.Capped)
	assert.Equal(t, int64(65536), stats.SizeInBytes)
	assert.Equal(t, int64(5000), stats.MaxDocuments)

	err = db.CreateCollection(ctx, "logs", CollectionOptions{})
	assert.ErrorIs(t, err, ErrCollectionExists)
}

func TestMongo_PlainCollectionAndTTL(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.CreateCollection(ctx, "logs", CollectionOptions{}))
	stats, err := db.CollectionStats(ctx, "logs")
	require.NoError(t, err)
	assert.False(t, stats.Capped)

	ttl := TTLIndex{Name: "expireAfterSecondsIndex", Field: "timestamp", ExpireAfterSeconds: 5}
	require.NoError(t, db.CreateTTLIndex(ctx, "logs", ttl))
	require.NoError(t, db.CreateTTLIndex(ctx, "logs", ttl), "same index twice is a no-op")

	other := ttl
	other.ExpireAfterSeconds = 9
	assert.ErrorIs(t, db.CreateTTLIndex(ctx, "logs", other), ErrIndexExists)

	indexes, err := db.Indexes(ctx, "logs")
	require.NoError(t, err)

	found := 0
	for _, idx := range indexes {
		if idx.Name == ttl.Name {
			found++
			require.NotNil(t, idx.ExpireAfterSeconds)
			assert.Equal(t, int64(5), *idx.ExpireAfterSeconds)
		}
	}
	assert.Equal(t, 1, found)
}

func TestMongo_InsertOrder(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.InsertMany(ctx, "logs", []bson.D{
		{{Key: "message", Value: "1"}},
		{{Key: "message", Value: "2"}},
	}))
	require.NoError(t, db.InsertOne(ctx, "logs", bson.D{{Key: "message", Value: "3"}}))

	client := db.(*mongoDatabase)
	cursor, err := client.db.Collection("logs").Find(ctx, bson.D{})
	require.NoError(t, err)

	var docs []struct {
		Message string `bson:"message"`
	}
	require.NoError(t, cursor.All(ctx, &docs))

	var messages []string
	for _, d := range docs {
		messages = append(messages, d.Message)
	}
	assert.Equal(t, []string{"1", "2", "3"}, messages)
}
