package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/jobstore"
	"github.com/apresai/narrator/internal/pipeline"
	"github.com/apresai/narrator/internal/translate"
	"github.com/apresai/narrator/internal/tts"
)

const sampleText = "One two three. Four five six. Seven eight nine. Ten eleven twelve."

type stubSynth struct {
	texts []string
	fail  string
}

func (s *stubSynth) Name() string { return "stub" }
func (s *stubSynth) Close() error { return nil }

func (s *stubSynth) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	s.texts = append(s.texts, text)
	if s.fail != "" && strings.Contains(text, s.fail) {
		return audio.Unit{}, errors.New("engine down")
	}
	return audio.Silence(audio.Mono16(100), 4*time.Second), nil
}

type stubWriter struct{ paths []string }

func (w *stubWriter) WriteMP3(ctx context.Context, u audio.Unit, path string) error {
	w.paths = append(w.paths, path)
	return nil
}

type stubTranslator struct{}

func (stubTranslator) Name() string { return "stub" }

func (stubTranslator) Translate(ctx context.Context, text string) (string, error) {
	return "<" + text + ">", nil
}

// stubEngines swaps the engine constructors for the duration of a test.
func stubEngines(t *testing.T, synth *stubSynth, writer *stubWriter) {
	t.Helper()
	oldSynth, oldTr, oldWriter, oldCheck := newSynthesizer, newTranslator, newWriter, checkEncoder
	t.Cleanup(func() {
		newSynthesizer, newTranslator, newWriter, checkEncoder = oldSynth, oldTr, oldWriter, oldCheck
	})
	newSynthesizer = func(ctx context.Context, e tts.Engine, o tts.Options) (tts.Synthesizer, error) {
		return synth, nil
	}
	newTranslator = func(ctx context.Context, e translate.Engine, o translate.Options) (translate.Translator, error) {
		return stubTranslator{}, nil
	}
	newWriter = func(string) pipeline.ArtifactWriter { return writer }
	checkEncoder = func() error { return nil }
}

func newJobCommand(scope config.Scope, runE func(*cobra.Command, []string) error) *cobra.Command {
	cmd := &cobra.Command{Use: "job", Args: cobra.MaximumNArgs(1), RunE: runE, SilenceUsage: true, SilenceErrors: true}
	addJobFlags(cmd.Flags(), scope)
	return cmd
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInput(t *testing.T, text string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
	return p
}

func exportCommand() *cobra.Command {
	return newJobCommand(config.ScopeSpeech, func(cmd *cobra.Command, args []string) error {
		return runSpeech(cmd, args, true)
	})
}

func TestExportCommand(t *testing.T) {
	synth, writer := &stubSynth{}, &stubWriter{}
	stubEngines(t, synth, writer)
	input := writeInput(t, sampleText)

	out, err := execute(t, exportCommand(), input, "--chunk-size", "20", "--max-file-duration", "10")
	require.NoError(t, err)

	key := jobstore.KeyFor(input)
	assert.Len(t, synth.texts, 4)
	assert.Equal(t, []string{key.ArtifactPath(1), key.ArtifactPath(2)}, writer.paths)
	assert.Contains(t, out, "2 audio segment(s) written")
	assert.NoFileExists(t, key.RecordPath())
}

func TestExportCommandResumesWithRecordedSettings(t *testing.T) {
	synth, writer := &stubSynth{}, &stubWriter{}
	stubEngines(t, synth, writer)
	input := writeInput(t, sampleText)
	key := jobstore.KeyFor(input)
	require.NoError(t, jobstore.New(key, nil).Flush(jobstore.Record{
		Parameters:        map[string]any{"CHUNK_SIZE": 30},
		LastChunkIndex:    0,
		LastArtifactIndex: 1,
	}))

	out, err := execute(t, exportCommand(), input, "--chunk-size", "20", "--max-file-duration", "600")
	require.NoError(t, err)

	assert.Contains(t, out, "Resuming book from chunk 2")
	assert.Contains(t, out, "[OVERRIDE] CHUNK_SIZE: 20 -> 30")
	assert.Equal(t, []string{"Seven eight nine.", "Ten eleven twelve."}, synth.texts)
	assert.Equal(t, []string{key.ArtifactPath(2)}, writer.paths)
}

func TestExportCommandFailureKeepsRecord(t *testing.T) {
	synth, writer := &stubSynth{fail: "Ten"}, &stubWriter{}
	stubEngines(t, synth, writer)
	input := writeInput(t, sampleText)

	_, err := execute(t, exportCommand(), input, "--chunk-size", "20", "--max-file-duration", "10")
	var ce *pipeline.ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Index)

	rec := jobstore.New(jobstore.KeyFor(input), nil).Restore()
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.LastChunkIndex)
	assert.Equal(t, 1, rec.LastArtifactIndex)
}

func TestEmptyInputIsNothingToDo(t *testing.T) {
	synth, writer := &stubSynth{}, &stubWriter{}
	stubEngines(t, synth, writer)
	input := writeInput(t, "  \n\n ")

	out, err := execute(t, exportCommand(), input)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to do")
	assert.Empty(t, synth.texts)
}

func TestMissingInput(t *testing.T) {
	_, err := execute(t, exportCommand())
	assert.ErrorContains(t, err, "input file or URL is required")
}

func TestInvalidConfiguration(t *testing.T) {
	input := writeInput(t, sampleText)
	_, err := execute(t, exportCommand(), input, "--chunk-size", "0")
	assert.ErrorContains(t, err, "CHUNK_SIZE must be positive")
}

func TestTranslateCommand(t *testing.T) {
	stubEngines(t, &stubSynth{}, &stubWriter{})
	input := writeInput(t, sampleText)

	cmd := newJobCommand(config.ScopeTranslate, runTranslate)
	out, err := execute(t, cmd, input, "--chunk-size", "30")
	require.NoError(t, err)

	key := jobstore.KeyFor(input)
	assert.Contains(t, out, "Translation saved to "+key.TranslationPath())
	data, err := os.ReadFile(key.TranslationPath())
	require.NoError(t, err)
	assert.Equal(t, "<One two three. Four five six.>\n<Seven eight nine.>\n<Ten eleven twelve.>", string(data))
	assert.NoFileExists(t, key.RecordPath())
}

func TestResolveInput(t *testing.T) {
	fs := pflag.NewFlagSet("x", pflag.ContinueOnError)
	addJobFlags(fs, config.ScopeSpeech)

	in, err := resolveInput(fs, []string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", in)

	require.NoError(t, fs.Set("input", "b.txt"))
	in, err = resolveInput(fs, nil)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", in)

	_, err = resolveInput(fs, []string{"a.txt"})
	assert.Error(t, err)
}

func TestRetryPolicy(t *testing.T) {
	p := retryPolicy(config.Retry{MaxAttempts: 5, Delay: 2 * time.Second})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.InitialDelay)
	assert.Equal(t, 2.0, p.Multiplier)
}

func TestGenerateEnvCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.translator")
	flagTransl, flagEnvOut, flagForce = true, path, false
	t.Cleanup(func() { flagTransl, flagEnvOut = false, "" })

	var out bytes.Buffer
	generateEnvCmd.SetOut(&out)
	require.NoError(t, runGenerateEnv(generateEnvCmd, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "TRANSLATION_ENGINE=")
	assert.NotContains(t, string(data), "TTS_ENGINE=")
	assert.Contains(t, out.String(), path)

	assert.ErrorContains(t, runGenerateEnv(generateEnvCmd, nil), "already exists")
}

func runeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func press(m wizardModel, msgs ...tea.Msg) wizardModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(wizardModel)
	}
	return m
}

func itemIndex(t *testing.T, m wizardModel, key string) int {
	t.Helper()
	for i, it := range m.items {
		if it.key == key {
			return i
		}
	}
	t.Fatalf("no item %s", key)
	return -1
}

func newTestWizard(t *testing.T) (wizardModel, *pflag.FlagSet) {
	fs := pflag.NewFlagSet("x", pflag.ContinueOnError)
	addJobFlags(fs, config.ScopeSpeech)
	return newWizardModel(fs, config.ScopeSpeech, ""), fs
}

func TestWizardRequiresInput(t *testing.T) {
	m, _ := newTestWizard(t)
	m.cursor = m.startIdx()
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.confirmed)
	assert.ErrorContains(t, m.err, "Input is required")
}

func TestWizardEditsAndApplies(t *testing.T) {
	m, fs := newTestWizard(t)

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("book.txx")},
		tea.KeyMsg{Type: tea.KeyBackspace}, runeKey('t'),
		tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "book.txt", m.items[0].value)
	assert.Equal(t, itemIndex(t, m, "CHUNK_SIZE"), m.cursor)

	out := itemIndex(t, m, "OUTPUT_TYPE")
	m.cursor = out
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, config.OutputFile, m.items[out].value)

	input, err := m.apply(fs)
	require.NoError(t, err)
	assert.Equal(t, "book.txt", input)
	got, _ := fs.GetString("output-type")
	assert.Equal(t, config.OutputFile, got)
	assert.False(t, fs.Changed("chunk-size"))
}

func TestWizardShowsOnlySelectedEngineSettings(t *testing.T) {
	m, _ := newTestWizard(t)
	assert.True(t, m.visible(itemIndex(t, m, "ONLINE_VOICE")))
	assert.False(t, m.visible(itemIndex(t, m, "POLLY_VOICE")))

	m.items[itemIndex(t, m, "TTS_ENGINE")].value = "POLLY"
	assert.False(t, m.visible(itemIndex(t, m, "ONLINE_VOICE")))
	assert.True(t, m.visible(itemIndex(t, m, "POLLY_VOICE")))
	assert.True(t, m.visible(itemIndex(t, m, "CHUNK_SIZE")))
}

func TestWizardQuit(t *testing.T) {
	m, _ := newTestWizard(t)
	m = press(m, runeKey('q'))
	assert.True(t, m.cancelled)
	assert.NotEmpty(t, m.View())
}

func TestTranslateRefusesUnfinishedExport(t *testing.T) {
	synth, writer := &stubSynth{fail: "Ten"}, &stubWriter{}
	stubEngines(t, synth, writer)
	input := writeInput(t, sampleText)

	_, err := execute(t, exportCommand(), input, "--chunk-size", "20", "--max-file-duration", "10")
	require.Error(t, err)

	_, err = execute(t, newJobCommand(config.ScopeTranslate, runTranslate), input, "--chunk-size", "20")
	var mismatch *jobstore.KindMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, jobstore.KindTranslation, mismatch.Want)

	key := jobstore.KeyFor(input)
	assert.NoFileExists(t, key.TranslationPath())
	rec := jobstore.New(key, nil).Restore()
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.LastChunkIndex)
}
