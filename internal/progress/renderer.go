package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// BarRenderer shows chunk progress. On a TTY it keeps a two-line display
// (current chunk, then bar with ETA) and redraws it in place; otherwise it
// prints one timestamped line per event.
type BarRenderer struct {
	out   io.Writer
	start time.Time
	isTTY bool
	width int

	last      Event
	lines     int // lines currently on screen, TTY only
	firstSeen int // first chunk index of this run, -1 until a chunk event arrives
	written   int
	lastFile  string
}

// NewBarRenderer creates a renderer for out, detecting TTY mode and width.
func NewBarRenderer(out *os.File) *BarRenderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())

	width := 80
	if tty {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			width = w
		}
	}
	return newRenderer(out, tty, width)
}

func newRenderer(out io.Writer, tty bool, width int) *BarRenderer {
	return &BarRenderer{
		out:       out,
		start:     time.Now(),
		isTTY:     tty,
		width:     width,
		firstSeen: -1,
	}
}

// Handle satisfies Callback.
func (r *BarRenderer) Handle(e Event) {
	e.Elapsed = time.Since(r.start)
	if e.Stage == StageComplete {
		e.Percent = 1
	}
	if e.ChunkTotal > 0 && r.firstSeen < 0 {
		r.firstSeen = e.ChunkIndex
	}
	if e.Stage == StageArtifact {
		r.written++
		r.lastFile = e.OutputFile
	}
	r.last = e

	if r.isTTY {
		r.renderTTY(e)
		return
	}
	r.renderPlain(e)
}

// Finish removes the live display and prints the outcome of the run.
func (r *BarRenderer) Finish() {
	e := r.last
	if r.isTTY && r.lines > 0 {
		r.clearLines()
	}

	if e.Error != nil {
		fmt.Fprintf(r.out, "\n  Error: %v\n", e.Error)
		return
	}
	if e.Stage != StageComplete {
		return
	}
	took := formatElapsed(e.Elapsed)
	switch {
	case e.Artifacts > 0:
		fmt.Fprintf(r.out, "\n  %d audio segment(s) written to %s (%s)\n", e.Artifacts, e.OutputFile, took)
	case e.OutputFile != "":
		fmt.Fprintf(r.out, "\n  Saved to %s (%s)\n", e.OutputFile, took)
	default:
		fmt.Fprintf(r.out, "\n  %s (%s)\n", e.Message, took)
	}
}

// eta extrapolates the time left from the chunks finished in this run.
// Chunks skipped by a resume do not count towards the rate.
func (r *BarRenderer) eta(e Event) (time.Duration, bool) {
	if e.ChunkTotal == 0 || r.firstSeen < 0 {
		return 0, false
	}
	done := e.ChunkIndex - r.firstSeen
	if done <= 0 {
		return 0, false
	}
	left := e.ChunkTotal - e.ChunkIndex
	return e.Elapsed / time.Duration(done) * time.Duration(left), true
}

func (r *BarRenderer) renderTTY(e Event) {
	if r.lines > 0 {
		r.clearLines()
	}

	status := "  " + e.Message
	if r.written > 0 {
		status += fmt.Sprintf("  (segments: %d, last %s)", r.written, filepath.Base(r.lastFile))
	}
	if len(status) > r.width {
		status = status[:max(r.width-1, 0)]
	}

	line := fmt.Sprintf("  %s %3d%%  %s", renderBar(e.Percent, r.barWidth()), int(e.Percent*100), formatElapsed(e.Elapsed))
	if left, ok := r.eta(e); ok {
		line += "  eta " + formatElapsed(left)
	}

	fmt.Fprintf(r.out, "%s\n%s", status, line)
	r.lines = 2
}

func (r *BarRenderer) renderPlain(e Event) {
	stamp := formatElapsed(e.Elapsed)
	switch {
	case e.Stage == StageArtifact:
		fmt.Fprintf(r.out, "[%s] segment %02d -> %s\n", stamp, e.Artifact, e.OutputFile)
	case e.ChunkTotal > 0:
		fmt.Fprintf(r.out, "[%s] %d/%d %s\n", stamp, e.ChunkIndex+1, e.ChunkTotal, e.Message)
	default:
		fmt.Fprintf(r.out, "[%s] %s\n", stamp, e.Message)
	}
}

func (r *BarRenderer) clearLines() {
	fmt.Fprint(r.out, "\r\033[2K")
	for i := 1; i < r.lines; i++ {
		fmt.Fprint(r.out, "\033[A\033[2K")
	}
	fmt.Fprint(r.out, "\r")
	r.lines = 0
}

// barWidth leaves room for percent, elapsed and eta: "  [..] 100%  0:00  eta 0:00".
func (r *BarRenderer) barWidth() int {
	return min(max(r.width-26, 20), 60)
}

func renderBar(pct float64, width int) string {
	pct = min(max(pct, 0), 1)
	filled := min(int(pct*float64(width)), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// formatElapsed formats d as M:SS.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
