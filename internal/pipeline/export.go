package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/jobstore"
	"github.com/apresai/narrator/internal/progress"
	"github.com/apresai/narrator/internal/segment"
	"github.com/apresai/narrator/internal/tts"
)

// ArtifactWriter persists one audio segment.
type ArtifactWriter interface {
	WriteMP3(ctx context.Context, u audio.Unit, path string) error
}

// Exporter synthesizes chunks into duration-bounded MP3 files and records
// progress after each file so an interrupted run can resume.
type Exporter struct {
	Synth       tts.Synthesizer
	Writer      ArtifactWriter
	Store       *jobstore.Store
	Params      map[string]any
	MaxDuration time.Duration
	Uploader    Uploader
	Logger      *slog.Logger
	Progress    progress.Callback
}

// ExportResult lists the files written by one run.
type ExportResult struct {
	Artifacts []string
	// Resumed is the first chunk processed; zero for a fresh run.
	Resumed int
}

// Run processes chunks starting after the position in rec, which may be
// nil. A synthesis or write failure aborts the run with the record left at
// the last written file.
func (e *Exporter) Run(ctx context.Context, chunks []segment.Chunk, rec *jobstore.Record) (ExportResult, error) {
	logger := orDiscard(e.Logger)
	report := orNop(e.Progress)
	start := time.Now()

	total := len(chunks)
	first := rec.NextChunk()
	ordinal := rec.NextArtifact()
	result := ExportResult{Resumed: first}

	if rec != nil && rec.Kind() != jobstore.KindAudio {
		return result, &PipelineError{Stage: "export", Message: "refusing to resume", Err: &jobstore.KindMismatchError{
			Path: e.Store.Key().RecordPath(), Want: jobstore.KindAudio, Got: rec.Kind(), NextChunk: first,
		}}
	}
	if first >= total {
		logger.Info("job already complete", "chunks", total)
		return result, e.Store.Clear()
	}
	if first > 0 {
		logger.Info("resuming export", "chunk", first, "artifact", ordinal, "chunks", total)
	}

	var buffer audio.Unit
	lastCompleted := first - 1

	for i := first; i < total; i++ {
		report(progress.ChunkEvent(progress.StageSynthesize,
			fmt.Sprintf("Synthesizing chunk %d/%d", i+1, total), i, total, start))

		unit, err := e.synthesize(ctx, chunks[i], total)
		if err != nil {
			return result, &ChunkError{Index: i, Err: err}
		}

		if buffer.Duration()+unit.Duration() > e.MaxDuration && !buffer.Empty() {
			path, err := e.writeArtifact(ctx, buffer, ordinal, lastCompleted)
			if err != nil {
				return result, err
			}
			result.Artifacts = append(result.Artifacts, path)
			report(artifactEvent(path, ordinal, i, total, start))
			ordinal++
			buffer.Reset()
		}

		if err := buffer.Append(unit); err != nil {
			return result, &ChunkError{Index: i, Err: err}
		}
		lastCompleted = i
	}

	if !buffer.Empty() {
		path, err := e.writeArtifact(ctx, buffer, ordinal, total-1)
		if err != nil {
			return result, err
		}
		result.Artifacts = append(result.Artifacts, path)
		report(artifactEvent(path, ordinal, total-1, total, start))
	}

	if err := e.Store.Clear(); err != nil {
		logger.Warn("removing progress record", "error", err)
	}
	return result, nil
}

func (e *Exporter) synthesize(ctx context.Context, c segment.Chunk, total int) (audio.Unit, error) {
	ctx, span := startChunkSpan(ctx, "pipeline.synthesize", c, total)
	unit, err := e.Synth.Synthesize(ctx, c.Text)
	endSpan(span, err)
	return unit, err
}

// writeArtifact writes buffer as file ordinal and then records lastChunk
// as durable. The file is written before the record so the record never
// points past what is on disk.
func (e *Exporter) writeArtifact(ctx context.Context, buffer audio.Unit, ordinal, lastChunk int) (string, error) {
	logger := orDiscard(e.Logger)
	key := e.Store.Key()
	path := key.ArtifactPath(ordinal)

	if err := e.Writer.WriteMP3(ctx, buffer, path); err != nil {
		return "", &PipelineError{Stage: "export", Message: fmt.Sprintf("writing %s", path), Err: err}
	}
	logger.Info("audio segment written", "path", path, "duration", buffer.Duration().Round(time.Second), "last_chunk_index", lastChunk)

	rec := jobstore.Record{Parameters: jobstore.WithKind(e.Params, jobstore.KindAudio), LastChunkIndex: lastChunk, LastArtifactIndex: ordinal}
	if err := e.Store.Flush(rec); err != nil {
		logger.Error("saving progress failed, continuing", "error", err)
	}

	upload(ctx, e.Uploader, logger, key.Base, path)
	return path, nil
}

func artifactEvent(path string, ordinal, index, total int, start time.Time) progress.Event {
	ev := progress.ChunkEvent(progress.StageArtifact, fmt.Sprintf("Wrote %s", path), index, total, start)
	ev.Artifact = ordinal
	ev.OutputFile = path
	return ev
}
