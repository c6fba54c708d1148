package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apresai/narrator/internal/assembly"
	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/ingest"
	"github.com/apresai/narrator/internal/jobstore"
	"github.com/apresai/narrator/internal/observability"
	"github.com/apresai/narrator/internal/pipeline"
	"github.com/apresai/narrator/internal/progress"
	"github.com/apresai/narrator/internal/retry"
	"github.com/apresai/narrator/internal/segment"
	"github.com/apresai/narrator/internal/storage"
	"github.com/apresai/narrator/internal/translate"
	"github.com/apresai/narrator/internal/tts"
)

// Engine constructors and sinks are variables so tests can substitute fakes.
var (
	newSynthesizer = tts.New
	newTranslator  = translate.New
	newWriter      = func(bitrate string) pipeline.ArtifactWriter { return assembly.NewMP3Writer(bitrate) }
	newSink        = func() pipeline.AudioSink { return audio.NewPlayer() }
	newUploader    = func(ctx context.Context, u config.Upload) (pipeline.Uploader, error) {
		return storage.NewDefaultS3Uploader(ctx, u.Bucket, u.Prefix)
	}
	checkEncoder = assembly.Available
)

// run is the state shared by the job commands.
type run struct {
	out    io.Writer
	cfg    config.Config
	logger *slog.Logger
}

// setup resolves the input and configuration, installs logging and
// tracing, and returns a context cancelled on SIGINT/SIGTERM.
func setup(cmd *cobra.Command, args []string, scope config.Scope, forceFile bool) (context.Context, *run, func(), error) {
	fs := cmd.Flags()
	input, err := resolveInput(fs, args)
	if err != nil {
		return nil, nil, nil, err
	}

	if tui, _ := fs.GetBool("tui"); tui {
		input, err = runWizard(fs, scope, input)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if input == "" {
		return nil, nil, nil, fmt.Errorf("an input file or URL is required (argument or --input)")
	}
	if forceFile {
		if err := fs.Set("output-type", config.OutputFile); err != nil {
			return nil, nil, nil, err
		}
	}

	envFile, _ := fs.GetString("env-file")
	if envFile == "" {
		envFile = config.DefaultEnvFile(scope)
	}
	v, err := config.NewViper(fs, envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load(v, scope)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Input = input

	logger := observability.InitLogger(cmd.ErrOrStderr(), flagVerbose)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	runID := observability.NewRunID()
	ctx = observability.WithRunID(ctx, runID)

	cleanup := cancel
	if observability.TracingEnabled() {
		tp, err := observability.InitTracer(ctx, "narrator", Version)
		if err != nil {
			logger.WarnContext(ctx, "tracing disabled", "error", err)
		} else {
			cleanup = func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Error("tracer shutdown", "error", err)
				}
				cancel()
			}
		}
	}

	logger.InfoContext(ctx, "run started", "command", cmd.Name(), "input", input, "version", Version)
	return ctx, &run{out: cmd.OutOrStdout(), cfg: cfg, logger: logger}, cleanup, nil
}

func resolveInput(fs *pflag.FlagSet, args []string) (string, error) {
	flagInput, _ := fs.GetString("input")
	switch {
	case len(args) > 0 && flagInput != "" && args[0] != flagInput:
		return "", fmt.Errorf("input given both as argument (%s) and --input (%s)", args[0], flagInput)
	case len(args) > 0:
		return args[0], nil
	default:
		return flagInput, nil
	}
}

func retryPolicy(r config.Retry) retry.Policy {
	return retry.Policy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.Delay,
		Multiplier:   2,
		MaxDelay:     time.Minute,
	}
}

// load reads and segments the input. It returns nil chunks for an empty
// input, which the caller reports as nothing to do.
func (r *run) load(ctx context.Context, cfg config.Config) ([]segment.Chunk, error) {
	content, err := ingest.Read(ctx, cfg.Input)
	if err != nil {
		return nil, &pipeline.PipelineError{Stage: "ingest", Message: "failed to read input", Err: err}
	}
	if content.Empty() {
		return nil, nil
	}
	chunks := segment.Segment(content.Text, cfg.Chunking.Size, cfg.Chunking.Mode())
	r.logger.InfoContext(ctx, "input segmented",
		"source", content.Source, "words", content.WordCount,
		"chunks", len(chunks), "chunk_size", cfg.Chunking.Size, "mode", cfg.Chunking.Mode())
	return chunks, nil
}

func (r *run) nothingToDo() error {
	fmt.Fprintf(r.out, "  Warning: %s contains no text, nothing to do\n", r.cfg.Input)
	return nil
}

// openJob prepares the job directory, restores any saved progress and
// returns the effective configuration for the job.
func (r *run) openJob(ctx context.Context, kind jobstore.Kind) (*jobstore.Store, *jobstore.Record, config.Config, error) {
	store := jobstore.New(jobstore.KeyForSource(r.cfg.Input), r.logger)
	if err := store.PrepareJobDir(r.cfg.Output.Clean); err != nil {
		return nil, nil, config.Config{}, &pipeline.PipelineError{Stage: "setup", Message: "preparing output directory", Err: err}
	}

	rec, err := store.RestoreFor(kind)
	if err != nil {
		return nil, nil, config.Config{}, err
	}
	cfg, overrides := store.Apply(r.cfg, rec)
	if rec != nil {
		printResumeBanner(r.out, store.Key(), rec, overrides)
	}
	return store, rec, cfg, nil
}

func printResumeBanner(w io.Writer, key jobstore.Key, rec *jobstore.Record, overrides []config.Override) {
	fmt.Fprintf(w, "  Resuming %s from chunk %d\n", key.Base, rec.NextChunk()+1)
	if len(overrides) == 0 {
		return
	}
	fmt.Fprintln(w, "  Settings restored from the saved job:")
	for _, o := range overrides {
		fmt.Fprintf(w, "    [OVERRIDE] %s\n", o)
	}
}

func (r *run) uploader(ctx context.Context, cfg config.Config) pipeline.Uploader {
	if cfg.Upload.Bucket == "" {
		return nil
	}
	u, err := newUploader(ctx, cfg.Upload)
	if err != nil {
		r.logger.WarnContext(ctx, "uploads disabled", "error", err)
		fmt.Fprintf(r.out, "  Warning: uploads disabled: %v\n", err)
		return nil
	}
	return u
}

func (r *run) renderer() (progress.Callback, func()) {
	if flagVerbose {
		return nil, func() {}
	}
	if f, ok := r.out.(*os.File); ok {
		br := progress.NewBarRenderer(f)
		return br.Handle, br.Finish
	}
	return nil, func() {}
}

func runSpeech(cmd *cobra.Command, args []string, forceFile bool) error {
	ctx, r, cleanup, err := setup(cmd, args, config.ScopeSpeech, forceFile)
	if err != nil {
		return err
	}
	defer cleanup()

	if strings.EqualFold(r.cfg.Speech.OfflineVoice, "HELP") {
		list, err := tts.ListOfflineVoices(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, list)
		return nil
	}

	if r.cfg.Output.Type == config.OutputAudio {
		return r.read(ctx)
	}
	return r.export(ctx)
}

func (r *run) synthesizer(ctx context.Context, cfg config.Config) (tts.Synthesizer, error) {
	engine, err := tts.ParseEngine(cfg.Speech.Engine)
	if err != nil {
		return nil, err
	}
	synth, err := newSynthesizer(ctx, engine, tts.Options{
		Speech: cfg.Speech,
		Keys:   cfg.Keys,
		Retry:  retryPolicy(cfg.Retry),
		Logger: r.logger,
	})
	if err != nil {
		return nil, &pipeline.PipelineError{Stage: "setup", Message: fmt.Sprintf("starting %s engine", engine), Err: err}
	}
	return synth, nil
}

func (r *run) read(ctx context.Context) error {
	chunks, err := r.load(ctx, r.cfg)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return r.nothingToDo()
	}

	synth, err := r.synthesizer(ctx, r.cfg)
	if err != nil {
		return err
	}
	defer synth.Close()

	report, finish := r.renderer()
	reader := &pipeline.Reader{Synth: synth, Sink: newSink(), Logger: r.logger, Progress: report}
	err = reader.Run(ctx, chunks)
	finish()
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(r.out, "\n  Stopped.")
		return nil
	}
	return err
}

func (r *run) export(ctx context.Context) error {
	if err := checkEncoder(); err != nil {
		return err
	}

	store, rec, cfg, err := r.openJob(ctx, jobstore.KindAudio)
	if err != nil {
		return err
	}
	chunks, err := r.load(ctx, cfg)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return r.nothingToDo()
	}
	if rec.NextChunk() >= len(chunks) {
		if err := store.Clear(); err != nil {
			r.logger.WarnContext(ctx, "removing progress record", "error", err)
		}
		fmt.Fprintf(r.out, "  %s is already complete\n", store.Key().Base)
		return nil
	}

	synth, err := r.synthesizer(ctx, cfg)
	if err != nil {
		return err
	}
	defer synth.Close()

	report, finish := r.renderer()
	exporter := &pipeline.Exporter{
		Synth:       synth,
		Writer:      newWriter(cfg.Output.Bitrate),
		Store:       store,
		Params:      cfg.Params(),
		MaxDuration: cfg.Output.MaxDuration,
		Uploader:    r.uploader(ctx, cfg),
		Logger:      r.logger,
		Progress:    report,
	}
	res, err := exporter.Run(ctx, chunks, rec)
	if err != nil {
		finish()
		return err
	}
	if report != nil {
		report(progress.Event{
			Stage:      progress.StageComplete,
			Message:    "Export complete",
			OutputFile: store.Key().JobDir(),
			Artifacts:  len(res.Artifacts),
		})
	}
	finish()
	if report == nil {
		fmt.Fprintf(r.out, "  Export complete: %d audio segment(s) written to %s\n", len(res.Artifacts), store.Key().JobDir())
	}
	return nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx, r, cleanup, err := setup(cmd, args, config.ScopeTranslate, false)
	if err != nil {
		return err
	}
	defer cleanup()

	store, rec, cfg, err := r.openJob(ctx, jobstore.KindTranslation)
	if err != nil {
		return err
	}
	chunks, err := r.load(ctx, cfg)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return r.nothingToDo()
	}
	if rec.NextChunk() >= len(chunks) {
		if err := store.Clear(); err != nil {
			r.logger.WarnContext(ctx, "removing progress record", "error", err)
		}
		fmt.Fprintf(r.out, "  %s is already complete\n", store.Key().Base)
		return nil
	}

	engine, err := translate.ParseEngine(cfg.Translate.Engine)
	if err != nil {
		return err
	}
	tr, err := newTranslator(ctx, engine, translate.Options{
		Translate: cfg.Translate,
		Keys:      cfg.Keys,
		Retry:     retryPolicy(cfg.Retry),
		Logger:    r.logger,
	})
	if err != nil {
		return &pipeline.PipelineError{Stage: "setup", Message: fmt.Sprintf("starting %s translator", engine), Err: err}
	}

	report, finish := r.renderer()
	job := &pipeline.Translation{
		Translator: tr,
		Store:      store,
		Params:     cfg.Params(),
		Uploader:   r.uploader(ctx, cfg),
		Logger:     r.logger,
		Progress:   report,
	}
	res, err := job.Run(ctx, chunks, rec)
	finish()
	if err != nil {
		return err
	}
	for _, i := range res.Failed {
		fmt.Fprintf(r.out, "  Warning: chunk %d could not be translated, placeholder inserted\n", i+1)
	}
	fmt.Fprintf(r.out, "  Translation saved to %s\n", res.OutputFile)
	return nil
}
