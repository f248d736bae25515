// Package server accepts log events over HTTP and hands them to an appender.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fastjson"

	"github.com/log4mongo/log4mongo-go/internal/controller"
	"github.com/log4mongo/log4mongo-go/model"
)

// DefaultMaxBodyBytes limits request bodies when Options.MaxBodyBytes is
// not set.
const DefaultMaxBodyBytes = 4 << 20

// Sink receives ingested events.
type Sink interface {
	Append(ctx context.Context, e *model.Event)
	AppendBatch(ctx context.Context, events []*model.Event)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure an IngestServer.
type Options struct {
	// Keys authenticates requests. Nil or empty accepts all requests.
	Keys         *controller.KeyStore
	MaxBodyBytes int64
	// Health is checked by GET /api/health when set.
	Health Pinger
	// GlobalProperties become the global property scope of every ingested
	// event.
	GlobalProperties map[string]any
}

// Stats are the server counters.
type Stats struct {
	Requests int64 `json:"requests"`
	Events   int64 `json:"events"`
	Rejected int64 `json:"rejected"`
	// Levels counts accepted events by level; events without one count
	// under "NONE".
	Levels map[string]int64 `json:"levels"`
}

type ingestResponse struct {
	Accepted int    `json:"accepted"`
	BatchID  string `json:"batch_id"`
}

type IngestServer struct {
	sink    Sink
	opts    Options
	decoder *bodyDecoder
	parser  fastjson.ParserPool
	srv     *http.Server

	requests atomic.Int64
	events   atomic.Int64
	rejected atomic.Int64

	levelsMu sync.Mutex
	levels   map[string]int64
}

func NewIngestServer(sink Sink, opts Options) (*IngestServer, error) {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	dec, err := newBodyDecoder(opts.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	opts.GlobalProperties = maps.Clone(opts.GlobalProperties)
	return &IngestServer{sink: sink, opts: opts, decoder: dec, levels: make(map[string]int64)}, nil
}

// Handler returns the HTTP routes.
func (s *IngestServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/ingest", s.AuthMiddleware(http.HandlerFunc(s.handleIngest)))
	mux.Handle("/api/stats", s.AuthMiddleware(http.HandlerFunc(s.handleStats)))
	mux.HandleFunc("/api/health", s.handleHealth)
	return mux
}

// Start runs the HTTP server until Shutdown.
func (s *IngestServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *IngestServer) Shutdown(ctx context.Context) error {
	defer s.decoder.close()
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// Stats returns the current counters.
func (s *IngestServer) Stats() Stats {
	s.levelsMu.Lock()
	levels := maps.Clone(s.levels)
	s.levelsMu.Unlock()

	return Stats{
		Requests: s.requests.Load(),
		Events:   s.events.Load(),
		Rejected: s.rejected.Load(),
		Levels:   levels,
	}
}

func (s *IngestServer) countLevels(events ...*model.Event) {
	s.levelsMu.Lock()
	defer s.levelsMu.Unlock()
	for _, e := range events {
		level := strings.ToUpper(e.Level)
		if level == "" {
			level = "NONE"
		}
		s.levels[level]++
	}
}

// AuthMiddleware checks for a valid API key in the Authorization header or
// the token query parameter.
func (s *IngestServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.Keys.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="log4mongo"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}
		if !s.opts.Keys.Verify(token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="log4mongo"`)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleIngest accepts one event object or an array of them.
func (s *IngestServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.requests.Add(1)
	defer r.Body.Close()

	body, err := s.decoder.read(r.Body, r.Header.Get("Content-Encoding"))
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		s.reject(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, ErrUnsupportedEncoding):
		s.reject(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Failed to read body")
		s.reject(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		s.reject(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	batchID := uuid.New().String()
	ctx := context.WithoutCancel(r.Context())

	var accepted int
	if v.Type() == fastjson.TypeArray {
		items, _ := v.Array()
		events := make([]*model.Event, 0, len(items))
		for i, item := range items {
			e, err := eventFromJSON(item, now, s.opts.GlobalProperties)
			if err != nil {
				s.reject(w, "event "+strconv.Itoa(i)+": "+err.Error(), http.StatusBadRequest)
				return
			}
			events = append(events, e)
		}
		s.countLevels(events...)
		s.sink.AppendBatch(ctx, events)
		accepted = len(events)
	} else {
		e, err := eventFromJSON(v, now, s.opts.GlobalProperties)
		if err != nil {
			s.reject(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.countLevels(e)
		s.sink.Append(ctx, e)
		accepted = 1
	}
	s.events.Add(int64(accepted))

	log.Debug().Str("batch_id", batchID).Int("accepted", accepted).Msg("Events ingested")
	writeJSON(w, http.StatusOK, ingestResponse{Accepted: accepted, BatchID: batchID})
}

func (s *IngestServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.opts.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *IngestServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Stats())
}

func (s *IngestServer) reject(w http.ResponseWriter, msg string, code int) {
	s.rejected.Add(1)
	http.Error(w, msg, code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("JSON encode error")
	}
}
