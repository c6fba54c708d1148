package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/progress"
	"github.com/apresai/narrator/internal/segment"
	"github.com/apresai/narrator/internal/tts"
)

// AudioSink plays synthesized audio.
type AudioSink interface {
	Play(ctx context.Context, u audio.Unit) error
}

// Reader reads chunks aloud one after another. Nothing is persisted.
type Reader struct {
	Synth    tts.Synthesizer
	Sink     AudioSink
	Logger   *slog.Logger
	Progress progress.Callback
}

func (r *Reader) Run(ctx context.Context, chunks []segment.Chunk) error {
	logger := orDiscard(r.Logger)
	report := orNop(r.Progress)
	start := time.Now()
	total := len(chunks)

	for i, c := range chunks {
		report(progress.ChunkEvent(progress.StagePlay,
			fmt.Sprintf("Reading chunk %d/%d", i+1, total), i, total, start))

		sctx, span := startChunkSpan(ctx, "pipeline.read", c, total)
		unit, err := r.Synth.Synthesize(sctx, c.Text)
		if err == nil {
			err = r.Sink.Play(sctx, unit)
		}
		endSpan(span, err)
		if err != nil {
			return &ChunkError{Index: i, Err: err}
		}
		logger.Debug("chunk played", "chunk", i, "duration", unit.Duration())
	}
	return nil
}
