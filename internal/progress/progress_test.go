package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFraction(t *testing.T) {
	assert.Equal(t, 1.0, Fraction(0, 0))
	assert.Equal(t, 0.5, Fraction(2, 4))
	assert.Equal(t, 1.0, Fraction(9, 4))
	assert.Equal(t, 0.0, Fraction(-1, 4))
}

func TestChunkEvent(t *testing.T) {
	e := ChunkEvent(StageSynthesize, "synthesizing", 3, 10, time.Now())
	assert.Equal(t, 3, e.ChunkIndex)
	assert.Equal(t, 10, e.ChunkTotal)
	assert.InDelta(t, 0.4, e.Percent, 1e-9)
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "[#####.....]", renderBar(0.5, 10))
	assert.Equal(t, "[..........]", renderBar(-3, 10))
	assert.Equal(t, "[##########]", renderBar(7, 10))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:05", formatElapsed(5*time.Second))
	assert.Equal(t, "12:34", formatElapsed(12*time.Minute+34*time.Second))
}

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)

	r.Handle(ChunkEvent(StageSynthesize, "synthesizing", 0, 2, time.Now()))
	r.Handle(Event{Stage: StageComplete, Message: "done", OutputFile: "book", Artifacts: 2})
	r.Finish()

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[0], "1/2 synthesizing")
	assert.Contains(t, out, "2 audio segment(s) written to book")
}

func TestFinishReportsError(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)
	r.Handle(Event{Stage: StageSynthesize, Message: "x", Error: errors.New("engine down")})
	r.Finish()
	assert.Contains(t, buf.String(), "Error: engine down")
}

func TestTTYRendererOverwrites(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, true, 80)
	r.Handle(NewEvent(StageSegment, "segmenting", 0, time.Now()))
	r.Handle(NewEvent(StageSegment, "segmenting", 1, time.Now()))
	assert.Contains(t, buf.String(), "\033[A\033[2K")
	assert.Equal(t, 2, r.lines)
}

func TestPlainRendererArtifactLine(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)
	r.Handle(Event{Stage: StageArtifact, Artifact: 3, OutputFile: "book/03_book.mp3", ChunkIndex: 4, ChunkTotal: 9})
	assert.Contains(t, buf.String(), "segment 03 -> book/03_book.mp3")
	assert.Equal(t, 1, r.written)
}

func TestETAIgnoresResumedChunks(t *testing.T) {
	r := newRenderer(&bytes.Buffer{}, false, 80)
	r.Handle(Event{Stage: StageSynthesize, ChunkIndex: 6, ChunkTotal: 10})

	_, ok := r.eta(Event{ChunkIndex: 6, ChunkTotal: 10, Elapsed: time.Minute})
	assert.False(t, ok)

	left, ok := r.eta(Event{ChunkIndex: 8, ChunkTotal: 10, Elapsed: time.Minute})
	assert.True(t, ok)
	assert.Equal(t, time.Minute, left)
}
