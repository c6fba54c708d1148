// Package jobstore persists resumable job progress next to the input file.
//
// Every job owns a directory {input_dir}/{base}/ holding its output files and
// a JSON record {base}.progress. The record is rewritten after each durable
// output and deleted once the job completes, so its presence means "resume
// from here".
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apresai/narrator/internal/config"
)

// Key identifies a job by the directory and base name of its input.
type Key struct {
	Dir  string
	Base string
}

// KeyFor derives the job key from an input file path.
func KeyFor(inputPath string) Key {
	dir := filepath.Dir(inputPath)
	if dir == "" {
		dir = "."
	}
	name := filepath.Base(inputPath)
	return Key{Dir: dir, Base: strings.TrimSuffix(name, filepath.Ext(name))}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// KeyForSource is KeyFor extended to URLs, whose jobs live in the working
// directory under a name taken from the last path element or the host.
func KeyForSource(source string) Key {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return KeyFor(source)
	}
	name := path.Base(strings.TrimSuffix(u.Path, "/"))
	if name == "." || name == "/" || name == "" {
		name = u.Hostname()
	} else {
		name = strings.TrimSuffix(name, path.Ext(name))
	}
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "page"
	}
	return Key{Dir: ".", Base: name}
}

// JobDir is the directory that holds the record and all output files.
func (k Key) JobDir() string { return filepath.Join(k.Dir, k.Base) }

// RecordPath is the location of the progress record.
func (k Key) RecordPath() string { return filepath.Join(k.JobDir(), k.Base+".progress") }

// ArtifactPath returns the path of the 1-based audio segment ordinal.
func (k Key) ArtifactPath(ordinal int) string {
	return filepath.Join(k.JobDir(), fmt.Sprintf("%02d_%s.mp3", ordinal, k.Base))
}

// TranslationPath is where a finished translation is written.
func (k Key) TranslationPath() string {
	return filepath.Join(k.JobDir(), k.Base+"_translated.txt")
}

// Record is the persisted resume state.
type Record struct {
	Parameters        map[string]any `json:"parameters"`
	LastChunkIndex    int            `json:"last_chunk_index"`
	LastArtifactIndex int            `json:"last_mp3_index"`
	TranslatedChunks  []string       `json:"translated_chunks,omitempty"`
}

// Kind tells which loop wrote a record. Audio export and translation share
// the record path, so a run must not resume from the other kind's record.
type Kind string

const (
	KindAudio       Kind = "audio"
	KindTranslation Kind = "translation"

	// KindParam is the parameters entry that stores the Kind.
	KindParam = "JOB_KIND"
)

// WithKind returns a copy of params tagged with kind.
func WithKind(params map[string]any, kind Kind) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[KindParam] = string(kind)
	return out
}

// Kind reports which loop wrote the record. Records without the tag are
// translations when they carry translated chunks and audio exports
// otherwise.
func (r *Record) Kind() Kind {
	if v, ok := r.Parameters[KindParam].(string); ok && v != "" {
		return Kind(v)
	}
	if r.TranslatedChunks != nil {
		return KindTranslation
	}
	return KindAudio
}

// KindMismatchError reports a record left behind by the other kind of job.
type KindMismatchError struct {
	Path      string
	Want      Kind
	Got       Kind
	NextChunk int
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("%s holds an unfinished %s job (next chunk %d), not a %s job: finish that run or delete the record to start over",
		e.Path, e.Got, e.NextChunk+1, e.Want)
}

// NextChunk is the first chunk index a resumed run should process.
func (r *Record) NextChunk() int {
	if r == nil {
		return 0
	}
	return r.LastChunkIndex + 1
}

// NextArtifact is the ordinal of the next audio segment to write.
func (r *Record) NextArtifact() int {
	if r == nil {
		return 1
	}
	return r.LastArtifactIndex + 1
}

// recordFile mirrors Record with pointers so missing fields can be told
// apart from zero values.
type recordFile struct {
	Parameters        *map[string]any `json:"parameters"`
	LastChunkIndex    *int            `json:"last_chunk_index"`
	LastArtifactIndex *int            `json:"last_mp3_index"`
	TranslatedChunks  []string        `json:"translated_chunks"`
}

// Store reads and writes the record of one job.
type Store struct {
	key    Key
	logger *slog.Logger
}

// New returns a store for key. A nil logger discards log output.
func New(key Key, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{key: key, logger: logger.With("job", key.Base)}
}

// Key returns the job key.
func (s *Store) Key() Key { return s.key }

// Restore loads the record. It returns nil when no record exists. A record
// that cannot be read or parsed, or lacks required fields, is deleted and
// treated as absent so the job restarts from the beginning.
func (s *Store) Restore() *Record {
	p := s.key.RecordPath()
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		s.discard(p, err)
		return nil
	}

	var f recordFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.discard(p, err)
		return nil
	}
	if f.Parameters == nil || f.LastChunkIndex == nil {
		s.discard(p, errors.New("missing parameters or last_chunk_index"))
		return nil
	}

	rec := &Record{
		Parameters:       *f.Parameters,
		LastChunkIndex:   *f.LastChunkIndex,
		TranslatedChunks: f.TranslatedChunks,
	}
	if f.LastArtifactIndex != nil {
		rec.LastArtifactIndex = *f.LastArtifactIndex
	}
	if rec.Parameters == nil {
		rec.Parameters = map[string]any{}
	}
	return rec
}

// RestoreFor is Restore for a job of the given kind. A record written by
// the other kind is left on disk and reported as a *KindMismatchError.
func (s *Store) RestoreFor(kind Kind) (*Record, error) {
	rec := s.Restore()
	if rec == nil {
		return nil, nil
	}
	if got := rec.Kind(); got != kind {
		return nil, &KindMismatchError{Path: s.key.RecordPath(), Want: kind, Got: got, NextChunk: rec.NextChunk()}
	}
	return rec, nil
}

func (s *Store) discard(p string, cause error) {
	s.logger.Warn("discarding unreadable progress record", "path", p, "error", cause)
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("removing progress record", "path", p, "error", err)
	}
}

// Apply overlays the recorded parameters onto cfg and returns the effective
// configuration together with the settings that changed. cfg itself is not
// modified. A recorded value that no longer converts keeps the current
// setting and is logged.
func (s *Store) Apply(cfg config.Config, rec *Record) (config.Config, []config.Override) {
	if rec == nil {
		return cfg, nil
	}
	effective, overrides, err := cfg.Apply(rec.Parameters)
	if err != nil {
		s.logger.Warn("ignoring recorded parameters", "error", err)
	}
	return effective, overrides
}

// Flush atomically replaces the record. The job directory is created if
// needed. Errors are returned for the caller to report; the record on disk
// is either the previous one or the new one, never a partial write.
func (s *Store) Flush(rec Record) error {
	if rec.Parameters == nil {
		rec.Parameters = map[string]any{}
	}
	dir := s.key.JobDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding progress record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+s.key.Base+".progress-*")
	if err != nil {
		return fmt.Errorf("writing progress record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing progress record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing progress record: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.key.RecordPath()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing progress record: %w", err)
	}
	s.logger.Debug("progress saved", "last_chunk_index", rec.LastChunkIndex, "last_mp3_index", rec.LastArtifactIndex)
	return nil
}

// Clear deletes the record. A missing record is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.key.RecordPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing progress record: %w", err)
	}
	return nil
}

// PrepareJobDir ensures the job directory exists, first removing it with
// everything inside when clean is set.
func (s *Store) PrepareJobDir(clean bool) error {
	dir := s.key.JobDir()
	if clean {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("cleaning job directory: %w", err)
		}
		s.logger.Info("job directory cleaned", "dir", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job directory: %w", err)
	}
	return nil
}
