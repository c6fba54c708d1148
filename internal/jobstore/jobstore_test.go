package jobstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/narrator/internal/config"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(KeyFor(filepath.Join(t.TempDir(), "novel.txt")), nil)
}

func TestKeyPaths(t *testing.T) {
	k := KeyFor("books/novel.txt")
	assert.Equal(t, Key{Dir: "books", Base: "novel"}, k)
	assert.Equal(t, filepath.Join("books", "novel"), k.JobDir())
	assert.Equal(t, filepath.Join("books", "novel", "novel.progress"), k.RecordPath())
	assert.Equal(t, filepath.Join("books", "novel", "03_novel.mp3"), k.ArtifactPath(3))
	assert.Equal(t, filepath.Join("books", "novel", "novel_translated.txt"), k.TranslationPath())

	assert.Equal(t, Key{Dir: ".", Base: "novel"}, KeyFor("novel.txt"))
}

func TestKeyForSource(t *testing.T) {
	tests := []struct {
		in   string
		want Key
	}{
		{"https://example.com/stories/the-tale.html", Key{Dir: ".", Base: "the-tale"}},
		{"https://example.com/", Key{Dir: ".", Base: "example.com"}},
		{"http://example.com/a%20b/", Key{Dir: ".", Base: "a_b"}},
		{"chapters/one.md", Key{Dir: "chapters", Base: "one"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyForSource(tt.in))
		})
	}
}

func TestRestoreAbsent(t *testing.T) {
	s := newStore(t)
	rec := s.Restore()
	assert.Nil(t, rec)
	assert.Equal(t, 0, rec.NextChunk())
	assert.Equal(t, 1, rec.NextArtifact())
}

func TestFlushRestoreRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Flush(Record{
		Parameters:        map[string]any{"CHUNK_SIZE": 3500},
		LastChunkIndex:    7,
		LastArtifactIndex: 1,
	}))

	data, err := os.ReadFile(s.Key().RecordPath())
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "parameters")
	assert.Contains(t, raw, "last_mp3_index")
	assert.NotContains(t, raw, "translated_chunks")

	rec := s.Restore()
	require.NotNil(t, rec)
	assert.Equal(t, 8, rec.NextChunk())
	assert.Equal(t, 2, rec.NextArtifact())
	assert.Equal(t, float64(3500), rec.Parameters["CHUNK_SIZE"])

	entries, err := os.ReadDir(s.Key().JobDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFlushKeepsTranslatedChunks(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Flush(Record{LastChunkIndex: 1, TranslatedChunks: []string{"a", "b"}}))
	rec := s.Restore()
	require.NotNil(t, rec)
	assert.Equal(t, []string{"a", "b"}, rec.TranslatedChunks)
	assert.Equal(t, 0, rec.LastArtifactIndex)
	assert.NotNil(t, rec.Parameters)
}

func TestRestoreDiscardsCorruptRecord(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{truncated"},
		{"missing parameters", `{"last_chunk_index": 3, "last_mp3_index": 1}`},
		{"missing last chunk", `{"parameters": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, os.MkdirAll(s.Key().JobDir(), 0o755))
			require.NoError(t, os.WriteFile(s.Key().RecordPath(), []byte(tt.content), 0o644))

			assert.Nil(t, s.Restore())
			_, err := os.Stat(s.Key().RecordPath())
			assert.True(t, os.IsNotExist(err), "corrupt record is deleted")
		})
	}
}

func TestApplyUsesRecordedParameters(t *testing.T) {
	s := newStore(t)
	requested := config.Defaults(config.ScopeSpeech)

	effective, overrides := s.Apply(requested, nil)
	assert.Equal(t, requested, effective)
	assert.Empty(t, overrides)

	rec := &Record{Parameters: map[string]any{"CHUNK_SIZE": float64(1000), "UNKNOWN": true}}
	effective, overrides = s.Apply(requested, rec)
	assert.Equal(t, 1000, effective.Chunking.Size)
	assert.Equal(t, 3500, requested.Chunking.Size)
	require.Len(t, overrides, 1)
	assert.Equal(t, "CHUNK_SIZE", overrides[0].Key)
}

func TestClear(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Clear(), "clearing a missing record is fine")
	require.NoError(t, s.Flush(Record{LastChunkIndex: 0}))
	require.NoError(t, s.Clear())
	assert.Nil(t, s.Restore())
}

func TestPrepareJobDir(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.PrepareJobDir(false))
	stale := filepath.Join(s.Key().JobDir(), "01_novel.mp3")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	require.NoError(t, s.PrepareJobDir(false))
	assert.FileExists(t, stale)

	require.NoError(t, s.PrepareJobDir(true))
	assert.NoFileExists(t, stale)
	assert.DirExists(t, s.Key().JobDir())
}

func TestRecordKind(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want Kind
	}{
		{"tagged audio", Record{Parameters: map[string]any{KindParam: "audio"}}, KindAudio},
		{"tagged translation", Record{Parameters: map[string]any{KindParam: "translation"}}, KindTranslation},
		{"untagged with chunks", Record{Parameters: map[string]any{}, TranslatedChunks: []string{"a"}}, KindTranslation},
		{"untagged export", Record{Parameters: map[string]any{}, LastArtifactIndex: 1}, KindAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Kind())
		})
	}
}

func TestWithKindCopies(t *testing.T) {
	params := map[string]any{"CHUNK_SIZE": 3500}
	tagged := WithKind(params, KindAudio)
	assert.Equal(t, "audio", tagged[KindParam])
	assert.Equal(t, 3500, tagged["CHUNK_SIZE"])
	assert.NotContains(t, params, KindParam)
}

func TestRestoreForRejectsOtherKind(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Flush(Record{
		Parameters:        WithKind(map[string]any{"TTS_ENGINE": "ONLINE"}, KindAudio),
		LastChunkIndex:    7,
		LastArtifactIndex: 1,
	}))

	rec, err := s.RestoreFor(KindTranslation)
	assert.Nil(t, rec)
	var mismatch *KindMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, KindAudio, mismatch.Got)
	assert.Equal(t, 8, mismatch.NextChunk)
	assert.Contains(t, err.Error(), "unfinished audio job (next chunk 9)")
	assert.FileExists(t, s.Key().RecordPath())

	rec, err = s.RestoreFor(KindAudio)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 7, rec.LastChunkIndex)
}

func TestRestoreForMissingRecord(t *testing.T) {
	rec, err := newStore(t).RestoreFor(KindTranslation)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestApplyIgnoresKindParam(t *testing.T) {
	s := newStore(t)
	cfg := config.Defaults(config.ScopeSpeech)
	_, overrides := s.Apply(cfg, &Record{Parameters: WithKind(cfg.Params(), KindAudio)})
	assert.Empty(t, overrides)
}
