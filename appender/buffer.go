package appender

import (
	"context"
	"sync"
	"time"

	"github.com/log4mongo/log4mongo-go/model"
)

// DefaultBufferSize is the number of events a Buffer holds before it
// forwards them.
const DefaultBufferSize = 512

// BatchSink receives the batches forwarded by a Buffer. Appender is a
// BatchSink.
type BatchSink interface {
	AppendBatch(ctx context.Context, events []*model.Event)
}

// BufferOptions configure a Buffer.
type BufferOptions struct {
	// Size is the number of events held. The event that arrives when the
	// buffer is full is forwarded together with the held events.
	Size int
	// FlushInterval forwards held events periodically when positive.
	FlushInterval time.Duration
}

// Buffer holds events and forwards them to a BatchSink in one batch, so a
// burst of log calls becomes a single insert.
type Buffer struct {
	sink BatchSink
	size int

	// fwd is taken before mu.
	fwd sync.Mutex

	mu      sync.Mutex
	pending []*model.Event
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewBuffer creates a buffer forwarding to sink.
func NewBuffer(sink BatchSink, opts BufferOptions) *Buffer {
	b := &Buffer{
		sink: sink,
		size: opts.Size,
		done: make(chan struct{}),
	}
	if b.size <= 0 {
		b.size = DefaultBufferSize
	}
	b.pending = make([]*model.Event, 0, b.size+1)

	if opts.FlushInterval > 0 {
		b.wg.Add(1)
		go b.runLoop(opts.FlushInterval)
	}
	return b
}

// Append holds e. When the buffer is already full, the held events and e
// are forwarded in order. Events appended after Close are forwarded
// immediately.
func (b *Buffer) Append(ctx context.Context, e *model.Event) {
	if e == nil {
		return
	}

	b.mu.Lock()
	b.pending = append(b.pending, e)
	closed := b.closed
	full := len(b.pending) > b.size
	b.mu.Unlock()

	switch {
	case closed:
		b.forward(ctx)
	case full:
		// The batch holds other callers' events too.
		b.forward(context.WithoutCancel(ctx))
	}
}

// AppendBatch appends each event in order.
func (b *Buffer) AppendBatch(ctx context.Context, events []*model.Event) {
	for _, e := range events {
		b.Append(ctx, e)
	}
}

// Len is the number of held events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush forwards the held events, if any.
func (b *Buffer) Flush(ctx context.Context) {
	b.forward(ctx)
}

// forward hands the held events to the sink. Batches reach the sink one at
// a time and in the order their events were appended.
func (b *Buffer) forward(ctx context.Context) {
	b.fwd.Lock()
	defer b.fwd.Unlock()

	b.mu.Lock()
	batch := b.take()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.sink.AppendBatch(ctx, batch)
	}
}

// Close stops the flush loop and forwards the held events.
func (b *Buffer) Close(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()
	b.Flush(ctx)
}

// take empties the buffer. Callers hold b.mu.
func (b *Buffer) take() []*model.Event {
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = make([]*model.Event, 0, b.size+1)
	return batch
}

func (b *Buffer) runLoop(interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush(context.Background())
		case <-b.done:
			return
		}
	}
}
