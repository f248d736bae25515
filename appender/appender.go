// Package appender writes log events as documents into a MongoDB collection.
//
// An Appender is configured with Options, activated once, and then receives
// events through Append or AppendBatch. Write failures never reach the
// logging call site; they are reported to the configured ErrorHandler.
package appender

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/log4mongo/log4mongo-go/internal/connection"
	"github.com/log4mongo/log4mongo-go/internal/document"
	"github.com/log4mongo/log4mongo-go/internal/provision"
	"github.com/log4mongo/log4mongo-go/internal/store"
	"github.com/log4mongo/log4mongo-go/model"
)

type session struct {
	conn   store.Session
	db     store.Database
	target connection.Target
}

// Appender stores events in a MongoDB collection.
type Appender struct {
	opts       Options
	instanceID string
	collection string
	spec       provision.Spec
	builder    *document.Builder
	errors     ErrorHandler
	dial       store.Dialer

	mu      sync.Mutex
	current atomic.Pointer[session]
}

// New creates an inactive appender. Options are copied; later changes to
// the caller's value have no effect.
func New(opts Options) *Appender {
	a := &Appender{
		opts:       opts,
		instanceID: newInstanceID(),
		collection: opts.collectionName(),
		spec: provision.Spec{
			MaxSize:            opts.NewCollectionMaxSize,
			MaxDocs:            opts.NewCollectionMaxDocs,
			ExpireAfterSeconds: opts.ExpireAfterSeconds,
		},
		dial: store.Dial,
	}
	a.opts.Fields = append([]Field(nil), opts.Fields...)

	a.errors = opts.ErrorHandler
	if a.errors == nil {
		a.errors = logErrorHandler{instanceID: a.instanceID}
	}

	a.builder = document.NewBuilder(document.Config{
		Fields:      a.opts.Fields,
		Behavior:    opts.FieldBehavior,
		MachineName: opts.MachineName,
		OnFieldError: func(field string, err error) {
			a.errors.Error(fmt.Sprintf("field %q skipped", field), err)
		},
	})
	return a
}

// InstanceID identifies this appender in diagnostics.
func (a *Appender) InstanceID() string { return a.instanceID }

// Collection is the target collection name.
func (a *Appender) Collection() string { return a.collection }

// Active reports whether Activate succeeded and Close has not been called.
func (a *Appender) Active() bool { return a.current.Load() != nil }

// Activate resolves the connection and opens a session. Configuration
// errors are reported and returned; the appender then stays inactive and
// drops events. Activating an active appender is a no-op.
func (a *Appender) Activate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current.Load() != nil {
		return nil
	}

	target, err := connection.Resolve(connection.Settings{
		ConnectionString:     a.opts.ConnectionString,
		ConnectionStringName: a.opts.ConnectionStringName,
		Host:                 a.opts.Host,
		Port:                 a.opts.Port,
		DatabaseName:         a.opts.DatabaseName,
		UserName:             a.opts.UserName,
		Password:             a.opts.Password,
	}, a.lookup())
	if err != nil {
		a.errors.Error("resolve connection", err)
		return err
	}

	conn, err := a.dial(ctx, target.URI)
	if err != nil {
		a.errors.Error("open connection", err)
		return err
	}

	a.current.Store(&session{conn: conn, db: conn.Database(target.Database), target: target})

	log.Info().
		Str("appender", a.instanceID).
		Str("source", target.Source.String()).
		Str("database", target.Database).
		Str("collection", a.collection).
		Msg("Appender activated")
	return nil
}

func (a *Appender) lookup() connection.Lookup {
	if a.opts.ConnectionStrings == nil {
		return nil
	}
	return a.opts.ConnectionStrings
}

// Append writes one event. A nil event, or any event while the appender is
// inactive, writes nothing.
func (a *Appender) Append(ctx context.Context, e *model.Event) {
	s := a.current.Load()
	if s == nil || e == nil {
		return
	}
	defer a.recoverWrite()

	if !a.provision(ctx, s.db) {
		return
	}
	doc := a.builder.Build(e)
	if err := s.db.InsertOne(ctx, a.collection, doc); err != nil {
		a.errors.Error("write event", err)
	}
}

// AppendBatch writes events in order with a single insert. Nil entries are
// skipped; a batch with no events writes nothing.
func (a *Appender) AppendBatch(ctx context.Context, events []*model.Event) {
	s := a.current.Load()
	if s == nil {
		return
	}
	defer a.recoverWrite()

	docs := make([]bson.D, 0, len(events))
	for _, e := range events {
		if e != nil {
			docs = append(docs, a.builder.Build(e))
		}
	}
	if len(docs) == 0 {
		return
	}

	if !a.provision(ctx, s.db) {
		return
	}
	if err := s.db.InsertMany(ctx, a.collection, docs); err != nil {
		a.errors.Error(fmt.Sprintf("write batch of %d events", len(docs)), err)
	}
}

func (a *Appender) provision(ctx context.Context, db store.Database) bool {
	res, err := provision.Ensure(ctx, db, a.collection, a.spec)
	if err != nil {
		a.errors.Error("provision collection", err)
		return false
	}
	if res.Created {
		log.Info().
			Str("appender", a.instanceID).
			Str("collection", a.collection).
			Bool("capped", res.Options.Capped).
			Int64("size", res.Options.SizeInBytes).
			Int64("max", res.Options.MaxDocuments).
			Msg("Collection created")
	}
	if res.IndexCreated {
		log.Info().
			Str("appender", a.instanceID).
			Str("collection", a.collection).
			Int("expire_after_seconds", a.spec.ExpireAfterSeconds).
			Msg("TTL index created")
	}
	return true
}

func (a *Appender) recoverWrite() {
	if r := recover(); r != nil {
		a.errors.Error("write event", fmt.Errorf("panic: %v", r))
	}
}

// Ping checks the connection of an active appender.
func (a *Appender) Ping(ctx context.Context) error {
	s := a.current.Load()
	if s == nil {
		return ErrInactive
	}
	return s.conn.Ping(ctx)
}

// Close releases the session. The appender becomes inactive and can be
// activated again.
func (a *Appender) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.current.Swap(nil)
	if s == nil {
		return nil
	}
	return s.conn.Close(ctx)
}
