package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/apresai/narrator/internal/jobstore"
	"github.com/apresai/narrator/internal/progress"
	"github.com/apresai/narrator/internal/segment"
	"github.com/apresai/narrator/internal/translate"
)

// FailedChunkText is substituted for a chunk that could not be translated.
// n is 1-based.
func FailedChunkText(n int) string {
	return fmt.Sprintf("[TRANSLATION FAILED FOR CHUNK %d]", n)
}

// Translation translates chunks one by one, saving the translated list
// after every chunk, failed or not, and writes the joined result once at
// the end.
type Translation struct {
	Translator translate.Translator
	Store      *jobstore.Store
	Params     map[string]any
	Uploader   Uploader
	Logger     *slog.Logger
	Progress   progress.Callback
}

// TranslationResult describes a finished translation run.
type TranslationResult struct {
	OutputFile string
	Failed     []int
	Resumed    int
}

// Run translates chunks after the position in rec, which may be nil.
// Individual chunk failures are replaced by a placeholder and do not stop
// the run.
func (t *Translation) Run(ctx context.Context, chunks []segment.Chunk, rec *jobstore.Record) (TranslationResult, error) {
	logger := orDiscard(t.Logger)
	report := orNop(t.Progress)
	start := time.Now()
	key := t.Store.Key()

	total := len(chunks)
	first := rec.NextChunk()
	result := TranslationResult{OutputFile: key.TranslationPath(), Resumed: first}

	if rec != nil && rec.Kind() != jobstore.KindTranslation {
		return result, &PipelineError{Stage: "translate", Message: "refusing to resume", Err: &jobstore.KindMismatchError{
			Path: key.RecordPath(), Want: jobstore.KindTranslation, Got: rec.Kind(), NextChunk: first,
		}}
	}
	if first >= total {
		logger.Info("job already complete", "chunks", total)
		return result, t.Store.Clear()
	}

	var translated []string
	if rec != nil {
		translated = restoreTranslated(rec.TranslatedChunks, first)
		for i, s := range translated {
			if s == FailedChunkText(i+1) {
				result.Failed = append(result.Failed, i)
			}
		}
		logger.Info("resuming translation", "chunk", first, "restored", len(translated), "failed", len(result.Failed), "chunks", total)
	}
	params := jobstore.WithKind(t.Params, jobstore.KindTranslation)

	for i := first; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return result, &PipelineError{Stage: "translate", Message: "interrupted", Err: err}
		}
		report(progress.ChunkEvent(progress.StageTranslate,
			fmt.Sprintf("Translating chunk %d/%d", i+1, total), i, total, start))

		text, err := t.translate(ctx, chunks[i], total)
		if err != nil {
			if ctx.Err() != nil {
				return result, &PipelineError{Stage: "translate", Message: "interrupted", Err: ctx.Err()}
			}
			logger.Warn("chunk translation failed, using placeholder", "chunk", i, "error", err)
			text = FailedChunkText(i + 1)
			result.Failed = append(result.Failed, i)
		}

		translated = append(translated, text)
		err = t.Store.Flush(jobstore.Record{
			Parameters:       params,
			LastChunkIndex:   i,
			TranslatedChunks: translated,
		})
		if err != nil {
			logger.Error("saving progress failed, continuing", "error", err)
		}
	}

	if err := os.MkdirAll(key.JobDir(), 0o755); err != nil {
		return result, &PipelineError{Stage: "translate", Message: "creating job directory", Err: err}
	}
	if err := os.WriteFile(result.OutputFile, []byte(strings.Join(translated, "\n")), 0o644); err != nil {
		return result, &PipelineError{Stage: "translate", Message: "writing translation", Err: err}
	}
	upload(ctx, t.Uploader, logger, key.Base, result.OutputFile)

	if err := t.Store.Clear(); err != nil {
		logger.Warn("removing progress record", "error", err)
	}
	return result, nil
}

func (t *Translation) translate(ctx context.Context, c segment.Chunk, total int) (string, error) {
	ctx, span := startChunkSpan(ctx, "pipeline.translate", c, total)
	text, err := t.Translator.Translate(ctx, c.Text)
	endSpan(span, err)
	return text, err
}

// restoreTranslated fits a saved list to exactly first entries: extra
// entries are dropped and missing ones become placeholders.
func restoreTranslated(saved []string, first int) []string {
	out := make([]string, 0, first)
	out = append(out, saved[:min(len(saved), first)]...)
	for n := len(out); n < first; n++ {
		out = append(out, FailedChunkText(n+1))
	}
	return out
}
