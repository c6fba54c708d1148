package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageSegment    Stage = "segment"
	StageSynthesize Stage = "synthesize"
	StageTranslate  Stage = "translate"
	StageArtifact   Stage = "artifact"
	StagePlay       Stage = "play"
	StageComplete   Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage   Stage
	Message string
	Percent float64 // 0.0–1.0
	// ChunkIndex is the 0-based chunk being processed, ChunkTotal the
	// number of chunks in the job.
	ChunkIndex int
	ChunkTotal int
	// Artifact is the ordinal of the audio segment just written.
	Artifact int
	Elapsed  time.Duration
	Error    error
	// OutputFile is set on StageArtifact and StageComplete.
	OutputFile string
	// Artifacts is the number of audio segments written by this run, set on StageComplete.
	Artifacts int
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}

// ChunkEvent creates an event for chunk index of total. Percent counts the
// chunk as done.
func ChunkEvent(stage Stage, msg string, index, total int, start time.Time) Event {
	e := NewEvent(stage, msg, Fraction(index+1, total), start)
	e.ChunkIndex = index
	e.ChunkTotal = total
	return e
}

// Fraction returns done/total clamped to [0, 1]. An empty job is complete.
func Fraction(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(done) / float64(total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
