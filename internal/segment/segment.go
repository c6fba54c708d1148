// Package segment splits source text into bounded, ordered chunks.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Mode selects the splitting strategy.
type Mode string

const (
	ModeSentence  Mode = "sentence"
	ModeParagraph Mode = "paragraph"
)

// ParseMode converts a user-supplied mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSentence, "":
		return ModeSentence, nil
	case ModeParagraph:
		return ModeParagraph, nil
	default:
		return "", fmt.Errorf("unknown chunk mode %q: choose sentence or paragraph", s)
	}
}

// Chunk is one unit of work handed to a synthesizer or translator.
type Chunk struct {
	Index int
	Text  string
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// The ellipsis alternative comes first so it wins over a single period.
	// Closing quotes and brackets after a delimiter belong to its sentence.
	sentenceEnd    = regexp.MustCompile(`(\.\.\.|[.!?;:\x{2014}\x{2013}])["'\x{201D}\x{2019}\x{00BB})\]]*`)
	paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n\s*`)
)

// Segment splits text into chunks no longer than maxSize characters, except
// where a single sentence is itself longer. The result is deterministic for
// a given (text, maxSize, mode).
func Segment(text string, maxSize int, mode Mode) []Chunk {
	if maxSize < 1 {
		maxSize = 1
	}

	var parts []string
	if mode == ModeParagraph {
		parts = packParagraphs(text, maxSize)
	} else {
		parts = packSentences(text, maxSize)
	}

	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Index: i, Text: p}
	}
	return chunks
}

// Normalize collapses whitespace runs to a single space and trims the ends.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Sentences splits normalized text into sentences. Each delimiter, with any
// closing quotes or brackets after it, stays on the sentence it closes. A
// delimiter only ends a sentence when whitespace or the end of the text
// follows, so "?!" and "3.14" stay intact while `"Why not?" he said` splits
// after the quote. Joining the result with single spaces reproduces
// Normalize(text).
func Sentences(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		end := m[1]
		if end < len(text) && text[end] != ' ' {
			continue
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func packSentences(text string, maxSize int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, s := range Sentences(text) {
		n := utf8.RuneCountInString(s)
		if currentLen == 0 {
			current.WriteString(s)
			currentLen = n
			continue
		}
		if currentLen+1+n <= maxSize {
			current.WriteByte(' ')
			current.WriteString(s)
			currentLen += 1 + n
			continue
		}
		chunks = append(chunks, current.String())
		current.Reset()
		current.WriteString(s)
		currentLen = n
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Paragraphs splits text on blank lines, trimming each paragraph and dropping
// empty ones. Whitespace inside a paragraph is preserved.
func Paragraphs(text string) []string {
	var paragraphs []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

const paragraphSep = "\n\n"

func packParagraphs(text string, maxSize int) []string {
	var chunks []string
	current := ""
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current)
			current, currentLen = "", 0
		}
	}

	for _, p := range Paragraphs(text) {
		n := utf8.RuneCountInString(p)
		if n > maxSize {
			flush()
			chunks = append(chunks, packSentences(p, maxSize)...)
			continue
		}
		if currentLen > 0 && currentLen+len(paragraphSep)+n <= maxSize {
			current += paragraphSep + p
			currentLen += len(paragraphSep) + n
			continue
		}
		flush()
		current, currentLen = p, n
	}
	flush()
	return chunks
}
