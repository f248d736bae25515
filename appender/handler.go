package appender

import (
	"bytes"
	"context"
	"log/slog"
	"maps"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/log4mongo/log4mongo-go/model"
)

// LoggerKey is the attribute that names the logger of a Handler, as in
// slog.New(h).With(appender.LoggerKey, "orders").
const LoggerKey = "logger"

// Sink receives the events built by a Handler. Both Appender and Buffer are
// sinks.
type Sink interface {
	Append(ctx context.Context, e *model.Event)
}

// HandlerOptions configure a Handler.
type HandlerOptions struct {
	// Level is the minimum level handled. Defaults to slog.LevelInfo.
	Level slog.Leveler
	// LoggerName is stored when no logger attribute is set.
	LoggerName string
	// Domain names the application. Defaults to the executable name.
	Domain string
	// UserName defaults to the current OS user.
	UserName string
	// GlobalProperties are stored with every event.
	GlobalProperties map[string]any
	// OmitSource drops the caller location from events.
	OmitSource bool
}

// Handler is a slog.Handler that forwards records to a Sink.
type Handler struct {
	sink       Sink
	opts       HandlerOptions
	loggerName string
	global     map[string]any
	groups     []string
}

// NewHandler returns a handler forwarding to sink. A nil opts uses the
// defaults.
func NewHandler(sink Sink, opts *HandlerOptions) *Handler {
	h := &Handler{sink: sink}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	if h.opts.Domain == "" {
		h.opts.Domain = filepath.Base(os.Args[0])
	}
	if h.opts.UserName == "" {
		if u, err := user.Current(); err == nil {
			h.opts.UserName = u.Username
		}
	}
	h.loggerName = h.opts.LoggerName
	h.global = maps.Clone(h.opts.GlobalProperties)
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	e := &model.Event{
		Timestamp:  r.Time,
		Level:      r.Level.String(),
		Thread:     goroutineName(),
		UserName:   h.opts.UserName,
		Message:    r.Message,
		LoggerName: h.loggerName,
		Domain:     h.opts.Domain,
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if !h.opts.OmitSource && r.PC != 0 {
		e.Location = location(r.PC)
	}

	thread := maps.Clone(model.PropertiesFrom(ctx))
	if thread == nil {
		thread = make(map[string]any)
	}

	var attrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if len(h.groups) == 0 {
			if err, ok := errorAttr(a); ok && e.Error == nil {
				e.Error = err
				return true
			}
			if a.Key == LoggerKey {
				e.LoggerName = a.Value.Resolve().String()
				return true
			}
		}
		attrs = append(attrs, a)
		return true
	})
	collect(thread, nest(h.groups, attrs))

	e.Properties = model.Properties{Global: h.global, Thread: thread}
	h.sink.Append(ctx, e)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.global = maps.Clone(h.global)
	if h2.global == nil {
		h2.global = make(map[string]any)
	}

	var rest []slog.Attr
	for _, a := range attrs {
		if len(h.groups) == 0 && a.Key == LoggerKey {
			h2.loggerName = a.Value.Resolve().String()
			continue
		}
		rest = append(rest, a)
	}
	collect(h2.global, nest(h.groups, rest))
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(h.groups[:len(h.groups):len(h.groups)], name)
	return &h2
}

// nest wraps attrs in the open groups, innermost last.
func nest(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	for i := len(groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: groups[i], Value: slog.GroupValue(attrs...)}}
	}
	return attrs
}

// collect stores attrs into dst. Groups become []slog.Attr values, which the
// document builder stores as sub-documents. Empty-keyed groups are inlined
// and other empty-keyed attributes are dropped.
func collect(dst map[string]any, attrs []slog.Attr) {
	for _, a := range attrs {
		v := a.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			if a.Key == "" {
				collect(dst, v.Group())
				continue
			}
			if len(v.Group()) == 0 {
				continue
			}
			dst[a.Key] = v.Group()
			continue
		}
		if a.Key == "" {
			continue
		}
		dst[a.Key] = v.Any()
	}
}

func errorAttr(a slog.Attr) (error, bool) {
	switch a.Key {
	case "err", "error", "exception":
	default:
		return nil, false
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindAny {
		return nil, false
	}
	err, ok := v.Any().(error)
	return err, ok && err != nil
}

// goroutineName reads the current goroutine id from the stack header
// "goroutine 7 [running]:".
func goroutineName() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return ""
	}
	return "goroutine " + string(fields[1])
}

func location(pc uintptr) *model.Location {
	fs := runtime.CallersFrames([]uintptr{pc})
	f, _ := fs.Next()
	if f.Function == "" && f.File == "" {
		return nil
	}
	class, method := splitFunction(f.Function)
	return &model.Location{
		File:   f.File,
		Line:   f.Line,
		Class:  class,
		Method: method,
	}
}

// splitFunction splits a qualified function name such as
// "example.com/app/orders.(*Service).Create" into the receiver-qualified
// package "example.com/app/orders.(*Service)" and the method "Create".
func splitFunction(fn string) (class, method string) {
	slash := strings.LastIndexByte(fn, '/')
	dot := strings.IndexByte(fn[slash+1:], '.')
	if dot < 0 {
		return "", fn
	}
	pkgEnd := slash + 1 + dot
	rest := fn[pkgEnd+1:]
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		return fn[:pkgEnd+1+i], rest[i+1:]
	}
	return fn[:pkgEnd], rest
}

var _ slog.Handler = (*Handler)(nil)
