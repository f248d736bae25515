// Package storetest provides an in-memory store.Database for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/log4mongo/log4mongo-go/internal/store"
)

// Calls counts the metadata operations issued against a Memory database.
type Calls struct {
	Exists      int
	Create      int
	ListIndexes int
	CreateIndex int
	InsertOne   int
	InsertMany  int
}

type collection struct {
	opts    store.CollectionOptions
	docs    []bson.D
	indexes []store.Index
}

// Memory is a goroutine-safe in-memory database.
type Memory struct {
	name string

	mu          sync.Mutex
	collections map[string]*collection
	calls       Calls

	// Inject errors; nil means success.
	ExistsErr error
	CreateErr error
	IndexErr  error
	InsertErr error
}

// NewMemory creates an empty database.
func NewMemory(name string) *Memory {
	return &Memory{name: name, collections: make(map[string]*collection)}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	_, ok := m.collections[name]
	return ok, nil
}

func (m *Memory) CreateCollection(_ context.Context, name string, opts store.CollectionOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Create++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("create collection %s: %w", name, store.ErrCollectionExists)
	}
	m.collections[name] = &collection{opts: opts, indexes: []store.Index{idIndex()}}
	return nil
}

func (m *Memory) CollectionStats(_ context.Context, name string) (store.CollectionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return store.CollectionStats{}, fmt.Errorf("collection %s not found", name)
	}
	return store.CollectionStats{
		Name:         name,
		Capped:       c.opts.Capped,
		SizeInBytes:  c.opts.SizeInBytes,
		MaxDocuments: c.opts.MaxDocuments,
	}, nil
}

func (m *Memory) Indexes(_ context.Context, name string) ([]store.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.ListIndexes++
	if m.IndexErr != nil {
		return nil, m.IndexErr
	}
	c, ok := m.collections[name]
	if !ok {
		return nil, nil
	}
	return append([]store.Index(nil), c.indexes...), nil
}

func (m *Memory) CreateTTLIndex(_ context.Context, name string, index store.TTLIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.CreateIndex++
	if m.IndexErr != nil {
		return m.IndexErr
	}
	c := m.implicitCollection(name)
	secs := int64(index.ExpireAfterSeconds)
	for _, existing := range c.indexes {
		if existing.Name == index.Name {
			if existing.ExpireAfterSeconds == nil || *existing.ExpireAfterSeconds != secs {
				return fmt.Errorf("create index %s on %s: %w", index.Name, name, store.ErrIndexExists)
			}
			return nil
		}
	}
	c.indexes = append(c.indexes, store.Index{
		Name:               index.Name,
		Keys:               bson.D{{Key: index.Field, Value: int32(1)}},
		ExpireAfterSeconds: &secs,
	})
	return nil
}

func (m *Memory) InsertOne(_ context.Context, name string, doc bson.D) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.InsertOne++
	if m.InsertErr != nil {
		return m.InsertErr
	}
	c := m.implicitCollection(name)
	c.docs = append(c.docs, doc)
	return nil
}

func (m *Memory) InsertMany(_ context.Context, name string, docs []bson.D) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.InsertMany++
	if m.InsertErr != nil {
		return m.InsertErr
	}
	c := m.implicitCollection(name)
	c.docs = append(c.docs, docs...)
	return nil
}

// Documents returns a copy of the documents stored in a collection, in
// insertion order.
func (m *Memory) Documents(name string) []bson.D {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return nil
	}
	return append([]bson.D(nil), c.docs...)
}

// Calls returns the operation counters.
func (m *Memory) Calls() Calls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Seed creates a collection directly, bypassing the call counters.
func (m *Memory) Seed(name string, opts store.CollectionOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = &collection{opts: opts, indexes: []store.Index{idIndex()}}
}

// implicitCollection mirrors the server creating a plain collection on first
// write. Callers hold m.mu.
func (m *Memory) implicitCollection(name string) *collection {
	c, ok := m.collections[name]
	if !ok {
		c = &collection{indexes: []store.Index{idIndex()}}
		m.collections[name] = c
	}
	return c
}

func idIndex() store.Index {
	return store.Index{Name: "_id_", Keys: bson.D{{Key: "_id", Value: int32(1)}}}
}

// Server is an in-memory store.Session holding Memory databases by name.
type Server struct {
	mu     sync.Mutex
	dbs    map[string]*Memory
	dialed []string
	closed int

	// DialErr fails every Dial.
	DialErr error
	// PingErr fails every Ping.
	PingErr error
}

// NewServer creates an empty server.
func NewServer() *Server {
	return &Server{dbs: make(map[string]*Memory)}
}

// Dialer returns a store.Dialer connecting to s.
func (s *Server) Dialer() store.Dialer {
	return func(_ context.Context, uri string) (store.Session, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.DialErr != nil {
			return nil, s.DialErr
		}
		s.dialed = append(s.dialed, uri)
		return s, nil
	}
}

// Database returns the named database, creating it on first use.
func (s *Server) Database(name string) store.Database {
	return s.DB(name)
}

// DB is Database with the concrete type.
func (s *Server) DB(name string) *Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[name]
	if !ok {
		db = NewMemory(name)
		s.dbs[name] = db
	}
	return db
}

func (s *Server) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

func (s *Server) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Dialed lists the URIs passed to the dialer.
func (s *Server) Dialed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dialed...)
}

// Closed reports how many times the session was closed.
func (s *Server) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	_ store.Database = (*Memory)(nil)
	_ store.Session  = (*Server)(nil)
)
