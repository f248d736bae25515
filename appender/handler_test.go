package appender

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/log4mongo/log4mongo-go/internal/connection"
	"github.com/log4mongo/log4mongo-go/model"
)

type eventSink struct {
	mu     sync.Mutex
	events []*model.Event
}

func (s *eventSink) Append(_ context.Context, e *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) AppendBatch(_ context.Context, events []*model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *eventSink) all() []*model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Event(nil), s.events...)
}

func (s *eventSink) last(t *testing.T) *model.Event {
	t.Helper()
	all := s.all()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func TestHandler_BuildsEvent(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, &HandlerOptions{
		LoggerName: "orders",
		Domain:     "shop",
		UserName:   "alice",
	}))

	before := time.Now()
	logger.Info("order placed", "id", 42)

	e := sink.last(t)
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "order placed", e.Message)
	assert.Equal(t, "orders", e.LoggerName)
	assert.Equal(t, "shop", e.Domain)
	assert.Equal(t, "alice", e.UserName)
	assert.True(t, strings.HasPrefix(e.Thread, "goroutine "), e.Thread)
	assert.False(t, e.Timestamp.Before(before))

	v, ok := e.Properties.Lookup("id")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	require.NotNil(t, e.Location)
	assert.True(t, strings.HasSuffix(e.Location.File, "handler_test.go"), e.Location.File)
	assert.Equal(t, "TestHandler_BuildsEvent", e.Location.Method)
	assert.Positive(t, e.Location.Line)
}

func TestHandler_Level(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, &HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("quiet")
	logger.Warn("loud")

	require.Len(t, sink.all(), 1)
	assert.Equal(t, "WARN", sink.last(t).Level)
}

func TestHandler_DefaultsToInfo(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, nil))

	logger.Debug("hidden")
	logger.Info("shown")

	require.Len(t, sink.all(), 1)
	assert.NotEmpty(t, sink.last(t).Domain)
}

func TestHandler_LoggerAttribute(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, &HandlerOptions{LoggerName: "root"}))

	logger.With(LoggerKey, "billing").Info("a")
	assert.Equal(t, "billing", sink.last(t).LoggerName)
	_, ok := sink.last(t).Properties.Lookup(LoggerKey)
	assert.False(t, ok)

	logger.Info("b", LoggerKey, "inline")
	assert.Equal(t, "inline", sink.last(t).LoggerName)

	logger.Info("c")
	assert.Equal(t, "root", sink.last(t).LoggerName)
}

func TestHandler_ErrorAttribute(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, nil))
	cause := errors.New("timeout")

	logger.Error("failed", "err", cause, "attempt", 3)

	e := sink.last(t)
	assert.Same(t, cause, e.Error)
	_, ok := e.Properties.Lookup("err")
	assert.False(t, ok)

	logger.Error("not an error", "error", "text")
	e = sink.last(t)
	assert.Nil(t, e.Error)
	v, _ := e.Properties.Lookup("error")
	assert.Equal(t, "text", v)
}

func TestHandler_PropertyScopes(t *testing.T) {
	sink := &eventSink{}
	h := NewHandler(sink, &HandlerOptions{GlobalProperties: map[string]any{"app": "shop", "region": "eu"}})
	logger := slog.New(h).With("version", "1.2")

	ctx := model.WithProperty(context.Background(), "request", "r-1")
	logger.InfoContext(ctx, "hi", "region", "us")

	e := sink.last(t)
	assert.Equal(t, map[string]any{"app": "shop", "region": "eu", "version": "1.2"}, e.Properties.Global)
	assert.Equal(t, map[string]any{"request": "r-1", "region": "us"}, e.Properties.Thread)

	v, _ := e.Properties.Lookup("region")
	assert.Equal(t, "us", v)

	// The context's map is left untouched.
	assert.Equal(t, map[string]any{"request": "r-1"}, model.PropertiesFrom(ctx))
}

func TestHandler_WithAttrsDoesNotLeak(t *testing.T) {
	sink := &eventSink{}
	base := slog.New(NewHandler(sink, nil))
	a := base.With("side", "a")
	b := base.With("side", "b")

	a.Info("x")
	assert.Equal(t, "a", sink.last(t).Properties.Global["side"])
	b.Info("x")
	assert.Equal(t, "b", sink.last(t).Properties.Global["side"])
	base.Info("x")
	assert.Empty(t, sink.last(t).Properties.Global)
}

func TestHandler_Groups(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, nil)).WithGroup("http").With("method", "GET")

	logger.Info("req", "status", 200, slog.Group("", slog.String("inline", "yes")))

	e := sink.last(t)
	global, ok := e.Properties.Global["http"].([]slog.Attr)
	require.True(t, ok)
	require.Len(t, global, 1)
	assert.Equal(t, "method", global[0].Key)
	assert.Equal(t, "GET", global[0].Value.String())

	thread, ok := e.Properties.Thread["http"].([]slog.Attr)
	require.True(t, ok)
	require.Len(t, thread, 2)
	assert.Equal(t, "status", thread[0].Key)
	assert.Equal(t, "", thread[1].Key)
}

func TestHandler_EmptyGroupsDropped(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, nil))

	logger.Info("x", slog.Group("empty"), slog.Group("", slog.Int("flat", 1)), slog.String("", "nokey"))

	e := sink.last(t)
	assert.Equal(t, map[string]any{"flat": int64(1)}, e.Properties.Thread)
}

func TestHandler_OmitSource(t *testing.T) {
	sink := &eventSink{}
	logger := slog.New(NewHandler(sink, &HandlerOptions{OmitSource: true}))

	logger.Info("x")
	assert.Nil(t, sink.last(t).Location)
}

func TestHandler_WritesThroughAppender(t *testing.T) {
	ctx := context.Background()
	a, srv, errs := newTestAppender(t, Options{ConnectionString: "mongodb://localhost"})
	require.NoError(t, a.Activate(ctx))
	logger := slog.New(NewHandler(a, &HandlerOptions{LoggerName: "api", GlobalProperties: map[string]any{"svc": "api"}}))

	logger.WithGroup("req").Warn("slow", "ms", 950)

	docs := srv.DB(connection.DefaultDatabase).Documents(DefaultCollectionName)
	require.Len(t, docs, 1)
	assert.Equal(t, "WARN", get(docs[0], "level"))
	assert.Equal(t, "api", get(docs[0], "loggerName"))
	assert.NotNil(t, get(docs[0], "fileName"))
	assert.Empty(t, errs.all())
}

func TestSplitFunction(t *testing.T) {
	tests := []struct {
		fn, class, method string
	}{
		{"example.com/app/orders.(*Service).Create", "example.com/app/orders.(*Service)", "Create"},
		{"example.com/app/orders.Create", "example.com/app/orders", "Create"},
		{"main.main", "main", "main"},
		{"main.run.func1", "main.run", "func1"},
		{"nodot", "", "nodot"},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			class, method := splitFunction(tt.fn)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.method, method)
		})
	}
}
