package provision

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/log4mongo/log4mongo-go/internal/store"
	"github.com/log4mongo/log4mongo-go/internal/store/storetest"
)

func TestSpec_Options(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want store.CollectionOptions
	}{
		{"unset", Spec{}, store.CollectionOptions{}},
		{"size and docs", Spec{MaxSize: "65536", MaxDocs: "5000"},
			store.CollectionOptions{Capped: true, SizeInBytes: 65536, MaxDocuments: 5000}},
		{"size with unit", Spec{MaxSize: "5MB"}, store.CollectionOptions{Capped: true, SizeInBytes: 5242880}},
		{"docs alone never caps", Spec{MaxDocs: "5000"}, store.CollectionOptions{}},
		{"typo in size stays uncapped", Spec{MaxSize: "12gb", MaxDocs: "10"}, store.CollectionOptions{}},
		{"bad docs ignored", Spec{MaxSize: "2k", MaxDocs: "lots"}, store.CollectionOptions{Capped: true, SizeInBytes: 2000}},
		{"negative size", Spec{MaxSize: "-5"}, store.CollectionOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Options())
		})
	}
}

func TestEnsure_CreatesCappedCollection(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewMemory("log4net")

	res, err := Ensure(ctx, db, "logs", Spec{MaxSize: "65536", MaxDocs: "5000"})
	require.NoError(t, err)
	assert.True(t, res.Created)

	stats, err := db.CollectionStats(ctx, "logs")
	require.NoError(t, err)
	assert.True(t, stats.Capped)
	assert.Equal(t, int64(65536), stats.SizeInBytes)
	assert.Equal(t, int64(5000), stats.MaxDocuments)
}

func TestEnsure_MaxDocsAloneNotCapped(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewMemory("log4net")

	_, err := Ensure(ctx, db, "logs", Spec{MaxDocs: "5000"})
	require.NoError(t, err)

	stats, err := db.CollectionStats(ctx, "logs")
	require.NoError(t, err)
	assert.False(t, stats.Capped)
}

func TestEnsure_ExistingCollectionUntouched(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewMemory("log4net")
	db.Seed("logs", store.CollectionOptions{})

	res, err := Ensure(ctx, db, "logs", Spec{MaxSize: "65536"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 0, db.Calls().Create)

	stats, _ := db.CollectionStats(ctx, "logs")
	assert.False(t, stats.Capped, "existing collections are never converted")
}

func TestEnsure_TTLIndexIdempotent(t *testing.T) {
	ctx := context.Background()
	db := storetest.NewMemory("log4net")
	spec := Spec{ExpireAfterSeconds: 5}

	res, err := Ensure(ctx, db, "logs", spec)
	require.NoError(t, err)
	assert.True(t, res.IndexCreated)

	res, err = Ensure(ctx, db, "logs", spec)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.IndexCreated)

	indexes, err := db.Indexes(ctx, "logs")
	require.NoError(t, err)

	var ttl []store.Index
	for _, idx := range indexes {
		if idx.Name == TTLIndexName {
			ttl = append(ttl, idx)
		}
	}
	require.Len(t, ttl, 1)
	require.NotNil(t, ttl[0].ExpireAfterSeconds)
	assert.Equal(t, int64(5), *ttl[0].ExpireAfterSeconds)
	assert.Equal(t, TTLField, ttl[0].Keys[0].Key)

	calls := db.Calls()
	assert.Equal(t, 1, calls.Create)
	assert.Equal(t, 1, calls.CreateIndex)
}

func TestEnsure_NoTTLWithoutExpiry(t *testing.T) {
	db := storetest.NewMemory("log4net")
	_, err := Ensure(context.Background(), db, "logs", Spec{})
	require.NoError(t, err)
	assert.Equal(t, 0, db.Calls().ListIndexes)
}

func TestEnsure_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("not authorized")

	db := storetest.NewMemory("log4net")
	db.ExistsErr = boom
	_, err := Ensure(ctx, db, "logs", Spec{})
	assert.ErrorIs(t, err, boom)

	db = storetest.NewMemory("log4net")
	db.CreateErr = boom
	_, err = Ensure(ctx, db, "logs", Spec{})
	assert.ErrorIs(t, err, boom)

	db = storetest.NewMemory("log4net")
	db.IndexErr = boom
	_, err = Ensure(ctx, db, "logs", Spec{ExpireAfterSeconds: 10})
	assert.ErrorIs(t, err, boom)
}

func TestEnsure_ConcurrentCreateIsNotAnError(t *testing.T) {
	db := storetest.NewMemory("log4net")
	db.CreateErr = store.ErrCollectionExists

	res, err := Ensure(context.Background(), db, "logs", Spec{})
	require.NoError(t, err)
	assert.False(t, res.Created)
}

func TestEnsure_ConcurrentIndexIsNotAnError(t *testing.T) {
	db := storetest.NewMemory("log4net")
	db.IndexErr = fmt.Errorf("create index: %w", store.ErrIndexExists)

	res, err := Ensure(context.Background(), db, "logs", Spec{ExpireAfterSeconds: 60})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.IndexCreated)
}
