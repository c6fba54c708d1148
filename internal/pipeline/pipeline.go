// Package pipeline runs the resumable chunk loops: audio export, live
// reading and translation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/narrator/internal/observability"
	"github.com/apresai/narrator/internal/progress"
	"github.com/apresai/narrator/internal/segment"
)

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ChunkError reports a chunk whose audio could not be produced. Nothing
// from that chunk onwards has been recorded.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed, progress not saved for this chunk: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Uploader copies a finished output file somewhere else.
type Uploader interface {
	Upload(ctx context.Context, job, path string) (string, error)
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

func orNop(cb progress.Callback) progress.Callback {
	if cb == nil {
		return progress.NopCallback
	}
	return cb
}

func startChunkSpan(ctx context.Context, name string, c segment.Chunk, total int) (context.Context, trace.Span) {
	return observability.Tracer().Start(ctx, name, trace.WithAttributes(
		attribute.Int("chunk.index", c.Index),
		attribute.Int("chunk.total", total),
		attribute.Int("chunk.runes", len([]rune(c.Text))),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func upload(ctx context.Context, u Uploader, logger *slog.Logger, job, path string) {
	if u == nil {
		return
	}
	key, err := u.Upload(ctx, job, path)
	if err != nil {
		logger.Warn("upload failed", "path", path, "error", err)
		return
	}
	logger.Info("uploaded", "path", path, "key", key)
}
