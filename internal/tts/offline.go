package tts

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/apresai/narrator/internal/assembly"
	"github.com/apresai/narrator/internal/audio"
	"github.com/apresai/narrator/internal/config"
)

// offlineFormat is what every system voice is normalized to, so units from
// one job always join.
var offlineFormat = audio.Mono16(22050)

// baseWordsPerMinute is the default speaking rate of say and espeak-ng.
const baseWordsPerMinute = 175

// OfflineSynthesizer renders speech with the operating system's voices:
// say on macOS, espeak-ng on Linux and System.Speech on Windows.
type OfflineSynthesizer struct {
	voice string
	rate  float64
	goos  string
}

func NewOfflineSynthesizer(s config.Speech) *OfflineSynthesizer {
	return &OfflineSynthesizer{voice: s.OfflineVoice, rate: s.Rate, goos: runtime.GOOS}
}

func (p *OfflineSynthesizer) Name() string { return "offline" }

func (p *OfflineSynthesizer) Synthesize(ctx context.Context, text string) (audio.Unit, error) {
	dir, err := os.MkdirTemp("", "narrator-offline-*")
	if err != nil {
		return audio.Unit{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	textFile := filepath.Join(dir, "chunk.txt")
	if err := os.WriteFile(textFile, []byte(text), 0o600); err != nil {
		return audio.Unit{}, fmt.Errorf("write chunk text: %w", err)
	}

	name, args, outFile, err := offlineCommand(p.goos, p.voice, p.rate, textFile, dir)
	if err != nil {
		return audio.Unit{}, err
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return audio.Unit{}, fmt.Errorf("%s failed: %w\n%s", name, err, stderr.String())
	}

	return assembly.DecodeFile(ctx, outFile, offlineFormat)
}

func (p *OfflineSynthesizer) Close() error { return nil }

// offlineCommand builds the platform command that speaks textFile into a
// file inside dir and returns that file's path.
func offlineCommand(goos, voice string, rate float64, textFile, dir string) (string, []string, string, error) {
	wpm := strconv.Itoa(int(math.Round(rate * baseWordsPerMinute)))
	switch goos {
	case "darwin":
		out := filepath.Join(dir, "chunk.aiff")
		args := []string{"-r", wpm, "-f", textFile, "-o", out}
		if voice != "" {
			args = append([]string{"-v", voice}, args...)
		}
		return "say", args, out, nil
	case "windows":
		out := filepath.Join(dir, "chunk.wav")
		// System.Speech rates run from -10 to 10 with 0 as normal speed.
		sapiRate := int(math.Max(-10, math.Min(10, math.Round((rate-1)*10))))
		var script strings.Builder
		script.WriteString("Add-Type -AssemblyName System.Speech; ")
		script.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
		if voice != "" {
			fmt.Fprintf(&script, "$s.SelectVoice(%s); ", psQuote(voice))
		}
		fmt.Fprintf(&script, "$s.Rate = %d; ", sapiRate)
		fmt.Fprintf(&script, "$s.SetOutputToWaveFile(%s); ", psQuote(out))
		fmt.Fprintf(&script, "$s.Speak([IO.File]::ReadAllText(%s)); ", psQuote(textFile))
		script.WriteString("$s.Dispose()")
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script.String()}, out, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		out := filepath.Join(dir, "chunk.wav")
		args := []string{"-s", wpm, "-f", textFile, "-w", out}
		if voice != "" {
			args = append([]string{"-v", voice}, args...)
		}
		return "espeak-ng", args, out, nil
	default:
		return "", nil, "", fmt.Errorf("OFFLINE engine is not supported on %s", goos)
	}
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ListOfflineVoices returns the installed system voices as printed by the
// platform tool.
func ListOfflineVoices(ctx context.Context) (string, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "say", "-v", "?")
	case "windows":
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command",
			"Add-Type -AssemblyName System.Speech; "+
				"(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | "+
				"ForEach-Object { $_.VoiceInfo.Name + ' (' + $_.VoiceInfo.Culture + ')' }")
	default:
		cmd = exec.CommandContext(ctx, "espeak-ng", "--voices")
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("listing system voices: %w", err)
	}
	return string(out), nil
}
