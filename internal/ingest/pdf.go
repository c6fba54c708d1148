package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFIngester extracts the text layer of a PDF. Pages are separated by a
// blank line.
type PDFIngester struct{}

// hyphenBreak matches a word split across two lines, e.g. "narra-\ntion".
var hyphenBreak = regexp.MustCompile(`(\p{L})-\n\s*(\p{Ll})`)

func (p *PDFIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	if err := validateFile(source); err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(source)
	if err != nil {
		return nil, fmt.Errorf("could not read PDF %s: %w", source, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	skipped := 0
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			skipped++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			continue
		}
		if text = cleanPageText(text); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("could not extract text from PDF %s (%d of %d pages unreadable; it may be scanned or image-based)",
			source, skipped, r.NumPage())
	}
	return newContent(strings.Join(pages, "\n\n"), "", filepath.Base(source)), nil
}

// cleanPageText rejoins hyphenated line breaks and trims the page.
func cleanPageText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	return strings.TrimSpace(s)
}
