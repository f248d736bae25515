package cmd

import (
	"context"
	"fmt"

	"github.com/log4mongo/log4mongo-go/appender"
	"github.com/log4mongo/log4mongo-go/internal/config"
	"github.com/log4mongo/log4mongo-go/model"
)

// pipeline is an activated appender, optionally behind a buffer.
type pipeline struct {
	appender *appender.Appender
	buffer   *appender.Buffer
}

func openPipeline(ctx context.Context, c *config.Config) (*pipeline, error) {
	opts, err := c.AppenderOptions()
	if err != nil {
		return nil, err
	}

	a := appender.New(opts)
	if err := a.Activate(ctx); err != nil {
		return nil, fmt.Errorf("activate appender: %w", err)
	}

	p := &pipeline{appender: a}
	if c.Buffer.Size > 0 {
		p.buffer = appender.NewBuffer(a, c.BufferOptions())
	}
	return p, nil
}

func (p *pipeline) Append(ctx context.Context, e *model.Event) {
	if p.buffer != nil {
		p.buffer.Append(ctx, e)
		return
	}
	p.appender.Append(ctx, e)
}

func (p *pipeline) AppendBatch(ctx context.Context, events []*model.Event) {
	if p.buffer != nil {
		p.buffer.AppendBatch(ctx, events)
		return
	}
	p.appender.AppendBatch(ctx, events)
}

func (p *pipeline) Ping(ctx context.Context) error {
	return p.appender.Ping(ctx)
}

// Close flushes the buffer and closes the appender.
func (p *pipeline) Close(ctx context.Context) error {
	if p.buffer != nil {
		p.buffer.Close(ctx)
	}
	return p.appender.Close(ctx)
}
