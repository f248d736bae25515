package document

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/log4mongo/log4mongo-go/layout"
	"github.com/log4mongo/log4mongo-go/model"
)

var alwaysPresent = []string{
	"timestamp", "level", "thread", "userName", "message", "loggerName", "domain", "machineName",
}

func plainEvent() *model.Event {
	return &model.Event{
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "INFO",
		Thread:     "goroutine 1",
		UserName:   "alice",
		Message:    "a log",
		LoggerName: "Test",
		Domain:     "testd",
	}
}

func TestDefaultBuilder_AlwaysPresentOnly(t *testing.T) {
	doc := NewDefaultBuilder("host-1").Build(plainEvent())

	assert.Equal(t, alwaysPresent, Keys(doc))
	v, _ := Lookup(doc, "machineName")
	assert.Equal(t, "host-1", v)
	v, _ = Lookup(doc, "message")
	assert.Equal(t, "a log", v)
}

func TestDefaultBuilder_NilEvent(t *testing.T) {
	assert.Nil(t, NewDefaultBuilder("h").Build(nil))
	assert.Nil(t, NewBuilder(Config{}).Build(nil))
}

func TestDefaultBuilder_HostnameFallback(t *testing.T) {
	assert.NotEmpty(t, NewDefaultBuilder("").MachineName())
}

func TestDefaultBuilder_FullEvent(t *testing.T) {
	e := plainEvent()
	e.Level = "FATAL"
	e.Location = &model.Location{File: "orders.go", Method: "Place", Line: 42, Class: "shop.(*Service)"}
	e.Error = errors.New("BOOM")
	e.Properties = model.Properties{
		Global: map[string]any{"GlobalContextProperty": "GlobalContextValue", "shared": "g"},
		Thread: map[string]any{"ThreadContextProperty": "ThreadContextValue", "shared": "t"},
	}

	doc := NewDefaultBuilder("h").Build(e)

	expectedKeys := append(append([]string{}, alwaysPresent...),
		"fileName", "method", "lineNumber", "className", "exception", "properties")
	assert.Equal(t, expectedKeys, Keys(doc))

	v, _ := Lookup(doc, "lineNumber")
	assert.Equal(t, 42, v)

	exc, _ := Lookup(doc, "exception")
	assert.Equal(t, bson.D{
		{Key: "message", Value: "BOOM"},
		{Key: "source", Value: "*errors.errorString"},
		{Key: "stackTrace", Value: ""},
	}, exc)

	props, _ := Lookup(doc, "properties")
	assert.Equal(t, bson.D{
		{Key: "GlobalContextProperty", Value: "GlobalContextValue"},
		{Key: "ThreadContextProperty", Value: "ThreadContextValue"},
		{Key: "shared", Value: "t"},
	}, props)
}

func TestExceptionDocument_Chain(t *testing.T) {
	inner := &model.RemoteError{Message: "disk full", Src: "IOException", Stack: "at Write()"}
	outer := fmt.Errorf("save order: %w", inner)

	doc := ExceptionDocument(outer)

	innerDoc, ok := Lookup(doc, "innerException")
	require.True(t, ok)
	msg, _ := Lookup(innerDoc.(bson.D), "message")
	assert.Equal(t, "disk full", msg)
	src, _ := Lookup(innerDoc.(bson.D), "source")
	assert.Equal(t, "IOException", src)
	stack, _ := Lookup(innerDoc.(bson.D), "stackTrace")
	assert.Equal(t, "at Write()", stack)
	_, nested := Lookup(innerDoc.(bson.D), "innerException")
	assert.False(t, nested)
}

type order struct {
	ID    string
	Items int
}

func TestDefaultBuilder_PropertyTypes(t *testing.T) {
	when := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	e := plainEvent()
	e.Properties.Thread = map[string]any{
		"number": 123,
		"date":   when,
		"order":  order{ID: "o-1", Items: 3},
		"tags":   []string{"a", "b"},
		"err":    errors.New("nope"),
		"nil":    nil,
	}

	props, _ := Lookup(NewDefaultBuilder("h").Build(e), "properties")
	p := props.(bson.D)

	v, _ := Lookup(p, "number")
	assert.Equal(t, int64(123), v)
	v, _ = Lookup(p, "date")
	assert.Equal(t, when, v)
	v, _ = Lookup(p, "order")
	assert.Equal(t, bson.D{{Key: "id", Value: "o-1"}, {Key: "items", Value: int32(3)}}, v)
	v, _ = Lookup(p, "tags")
	assert.Equal(t, bson.A{"a", "b"}, v)
	v, _ = Lookup(p, "err")
	assert.Equal(t, "nope", v)
	v, ok := Lookup(p, "nil")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestNative(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"int", 5, int64(5)},
		{"uint8", uint8(5), int32(5)},
		{"uint64 overflow", ^uint64(0), float64(^uint64(0))},
		{"float32", float32(1.5), 1.5},
		{"duration", 1500 * time.Millisecond, "1.5s"},
		{"bson passthrough", bson.D{{Key: "a", Value: 1}}, bson.D{{Key: "a", Value: 1}}},
		{"map", map[string]int{"a": 1}, bson.D{{Key: "a", Value: int32(1)}}},
		{"slog group", []slog.Attr{slog.Int("n", 2), slog.String("s", "x")},
			bson.D{{Key: "n", Value: int64(2)}, {Key: "s", Value: "x"}}},
		{"slog value", slog.BoolValue(true), true},
		{"func", func() {}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Native(tt.input)
			if tt.name == "func" {
				assert.IsType(t, "", got, "unencodable values fall back to text")
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

type chain struct {
	Name string
	Next *chain
}

func TestNative_ReferenceCycles(t *testing.T) {
	self := &chain{Name: "loop"}
	self.Next = self
	got, ok := Native(self).(string)
	require.True(t, ok)
	assert.Contains(t, got, "{loop ")

	m := map[string]any{"k": 1}
	m["self"] = m
	assert.Equal(t, "map[string]interface {}(cyclic)", Native(m))

	bm := bson.M{"k": 1}
	bm["self"] = bm
	assert.Equal(t, "bson.M(cyclic)", Native(bm))

	a := bson.A{1, nil}
	a[1] = a
	assert.Equal(t, "bson.A(cyclic)", Native(a))
}

func TestNative_DeepNesting(t *testing.T) {
	head := &chain{Name: "n0"}
	for i := 1; i <= maxNesting+10; i++ {
		head = &chain{Name: fmt.Sprintf("n%d", i), Next: head}
	}
	got, ok := Native(head).(string)
	require.True(t, ok)
	assert.Contains(t, got, "n110")
}

func TestNative_SharedPointersEncode(t *testing.T) {
	leaf := &chain{Name: "leaf"}
	got := Native(struct{ A, B *chain }{A: leaf, B: leaf})

	want := bson.D{{Key: "name", Value: "leaf"}, {Key: "next", Value: nil}}
	assert.Equal(t, bson.D{{Key: "a", Value: want}, {Key: "b", Value: want}}, got)
}

func TestDefaultBuilder_CyclicProperty(t *testing.T) {
	n := &chain{Name: "node"}
	n.Next = n
	e := plainEvent()
	e.Properties.Thread = map[string]any{"n": n, "ok": 1}

	doc := NewBuilder(Config{MachineName: "h"}).Build(e)

	props, _ := Lookup(doc, "properties")
	v, _ := Lookup(props.(bson.D), "n")
	assert.IsType(t, "", v)
	v, _ = Lookup(props.(bson.D), "ok")
	assert.Equal(t, int64(1), v)
}

func TestParseBehavior(t *testing.T) {
	tests := []struct {
		input   string
		want    Behavior
		wantErr bool
	}{
		{"", Explicit, false},
		{"Explicit", Explicit, false},
		{"additive", Additive, false},
		{"legacy", Legacy, false},
		{"MergeUnder", Legacy, false},
		{"sometimes", Explicit, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBehavior(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Behavior {
	t.Helper()
	b, err := ParseBehavior(s)
	require.NoError(t, err)
	return b
}

func TestBuilder_ExplicitWithoutFieldsMatchesDefault(t *testing.T) {
	e := plainEvent()
	e.Error = errors.New("x")
	e.Properties.Global = map[string]any{"k": "v"}

	b := NewBuilder(Config{MachineName: "h"})
	assert.Equal(t, NewDefaultBuilder("h").Build(e), b.Build(e))
}

func TestBuilder_ExplicitOnlyConfiguredFields(t *testing.T) {
	e := plainEvent()
	e.Properties.Thread = map[string]any{"threadContextProperty": "value", "numberProperty": 123}

	b := NewBuilder(Config{
		MachineName: "h",
		Fields: []Field{
			{Name: "timestamp", Layout: layout.RawTimeStamp{}},
			{Name: "level", Layout: layout.MustPattern("%level")},
			{Name: "threadContextProperty", Layout: layout.RawProperty{Key: "threadContextProperty"}},
			{Name: "numberProperty", Layout: layout.RawProperty{Key: "numberProperty"}},
			{Name: "customProperty", Layout: layout.RawProperty{Key: "customProperty"}},
		},
	})

	doc := b.Build(e)
	assert.Equal(t, []string{"timestamp", "level", "threadContextProperty", "numberProperty"}, Keys(doc),
		"missing property is skipped, defaults are not included")
	v, _ := Lookup(doc, "numberProperty")
	assert.Equal(t, int64(123), v)
	v, _ = Lookup(doc, "timestamp")
	assert.IsType(t, time.Time{}, v)
}

func TestBuilder_AdditiveOverride(t *testing.T) {
	e := plainEvent()
	defaults := NewDefaultBuilder("h").Build(e)

	for _, behavior := range []Behavior{Additive, Legacy} {
		t.Run(behavior.String(), func(t *testing.T) {
			b := NewBuilder(Config{
				MachineName: "h",
				Behavior:    behavior,
				Fields: []Field{
					{Name: "level", Layout: layout.Constant{Value: "OVERRIDE"}},
				},
			})

			doc := b.Build(e)
			assert.Equal(t, Keys(defaults), Keys(doc), "override keeps key position")
			for _, el := range defaults {
				got, _ := Lookup(doc, el.Key)
				if el.Key == "level" {
					assert.Equal(t, "OVERRIDE", got)
					continue
				}
				assert.Equal(t, el.Value, got, el.Key)
			}
		})
	}
}

func TestBuilder_AdditiveNewKeyAndLastWins(t *testing.T) {
	b := NewBuilder(Config{
		MachineName: "h",
		Behavior:    Additive,
		Fields: []Field{
			{Name: "app", Layout: layout.Constant{Value: "first"}},
			{Name: "app", Layout: layout.Constant{Value: "second"}},
		},
	})

	doc := b.Build(plainEvent())
	assert.Equal(t, append(append([]string{}, alwaysPresent...), "app"), Keys(doc))
	v, _ := Lookup(doc, "app")
	assert.Equal(t, "second", v)
}

func TestBuilder_FieldErrorsAreContained(t *testing.T) {
	var failed []string
	b := NewBuilder(Config{
		Fields: []Field{
			{Name: "bad", Layout: layout.Func(func(*model.Event) (any, error) { return nil, errors.New("render failed") })},
			{Name: "panics", Layout: layout.Func(func(*model.Event) (any, error) { panic("boom") })},
			{Name: "nolayout"},
			{Name: "message", Layout: layout.MustPattern("%message")},
		},
		OnFieldError: func(field string, err error) {
			failed = append(failed, field)
			assert.Error(t, err)
		},
	})

	doc := b.Build(plainEvent())
	assert.Equal(t, bson.D{{Key: "message", Value: "a log"}}, doc)
	assert.Equal(t, []string{"bad", "panics", "nolayout"}, failed)
}

func TestSet(t *testing.T) {
	doc := bson.D{{Key: "a", Value: 1}}
	doc = Set(doc, "b", 2)
	doc = Set(doc, "a", 3)
	assert.Equal(t, bson.D{{Key: "a", Value: 3}, {Key: "b", Value: 2}}, doc)
}
