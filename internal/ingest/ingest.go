// Package ingest extracts plain text from the supported input sources.
package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
)

type SourceType string

const (
	SourceURL  SourceType = "url"
	SourcePDF  SourceType = "pdf"
	SourceText SourceType = "text"

	// maxInputSize is the maximum allowed size for input content (25 MB).
	maxInputSize = 25 * 1024 * 1024
)

func (s SourceType) String() string {
	return string(s)
}

// Content is the extracted text of a source. Text may be empty; deciding
// what to do with an empty job is up to the caller.
type Content struct {
	Text      string
	Title     string
	Source    string
	WordCount int
}

// Empty reports whether the content has no readable characters.
func (c *Content) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}

type Ingester interface {
	Ingest(ctx context.Context, source string) (*Content, error)
}

func DetectSource(input string) SourceType {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return SourceURL
	}
	if strings.HasSuffix(strings.ToLower(input), ".pdf") {
		return SourcePDF
	}
	return SourceText
}

func NewIngester(input string) Ingester {
	switch DetectSource(input) {
	case SourceURL:
		return &URLIngester{}
	case SourcePDF:
		return &PDFIngester{}
	default:
		return &TextIngester{}
	}
}

// Read picks the ingester for source and runs it.
func Read(ctx context.Context, source string) (*Content, error) {
	return NewIngester(source).Ingest(ctx, source)
}

func newContent(text, title, source string) *Content {
	if title == "" {
		title = titleFromText(text, 80)
	}
	return &Content{
		Text:      text,
		Title:     title,
		Source:    source,
		WordCount: len(strings.FieldsFunc(text, unicode.IsSpace)),
	}
}

func titleFromText(text string, maxLen int) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexByte(line, '\n'); idx > 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if r := []rune(line); len(r) > maxLen {
		line = string(r[:maxLen]) + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), maxInputSize/(1024*1024))
	}
	return nil
}
