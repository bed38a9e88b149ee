// Package document turns source files into ordered pages of text. Binary
// formats are converted upstream; this package reads plain text with form-feed
// page breaks and JSON page lists.
package document

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

// Page is one page of extracted text. Numbers start at 1.
type Page struct {
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Extractor reads a document into pages.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) ([]Page, error)
}

// pageBreak separates pages in text exports such as pdftotext output.
const pageBreak = '\f'

// TextExtractor splits plain text on form feeds. Blank pages are dropped but
// keep their position in the numbering.
type TextExtractor struct{}

// Extract implements Extractor.
func (TextExtractor) Extract(ctx context.Context, r io.Reader) ([]Page, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	sc.Split(splitPages)

	var pages []Page
	for n := 1; sc.Scan(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, &llmerrors.CancellationError{Op: "extraction", Err: err}
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: n, Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return pages, nil
}

func splitPages(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, pageBreak); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// JSONExtractor reads a JSON array of {"page": n, "text": "..."} objects.
// Pages are returned sorted by number; duplicates and non-positive numbers
// are rejected.
type JSONExtractor struct{}

// Extract implements Extractor.
func (JSONExtractor) Extract(ctx context.Context, r io.Reader) ([]Page, error) {
	var pages []Page
	if err := json.NewDecoder(r).Decode(&pages); err != nil {
		return nil, &llmerrors.ParseError{Message: "failed to decode page list", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &llmerrors.CancellationError{Op: "extraction", Err: err}
	}

	slices.SortStableFunc(pages, func(a, b Page) int { return a.Number - b.Number })
	for i, p := range pages {
		if p.Number <= 0 {
			return nil, llmerrors.NewValidationError(fmt.Sprintf("pages[%d].page", i), "must be positive", p.Number)
		}
		if i > 0 && pages[i-1].Number == p.Number {
			return nil, llmerrors.NewValidationError(fmt.Sprintf("pages[%d].page", i), "must be unique", p.Number)
		}
	}
	return pages, nil
}

// ForPath picks an extractor by file extension.
func ForPath(path string) Extractor {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSONExtractor{}
	}
	return TextExtractor{}
}

// ExtractFile opens path and extracts its pages. A document without any text
// is an error.
func ExtractFile(ctx context.Context, path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	pages, err := ForPath(path).Extract(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, llmerrors.NewValidationError("document", "contains no text", path)
	}
	return pages, nil
}

// Join renders pages as one text with a page marker before each page, the
// form used in the digest prompt. Output stops before the page that would
// push it past limit characters; a limit <= 0 means no limit. The second
// result reports whether pages were left out.
func Join(pages []Page, limit int) (string, bool) {
	var b strings.Builder
	for _, p := range pages {
		chunk := fmt.Sprintf("[Page %d]\n%s\n\n", p.Number, p.Text)
		if limit > 0 && b.Len()+len(chunk) > limit {
			if b.Len() == 0 {
				b.WriteString(strings.ToValidUTF8(chunk[:limit], ""))
			}
			return strings.TrimRight(b.String(), "\n"), true
		}
		b.WriteString(chunk)
	}
	return strings.TrimRight(b.String(), "\n"), false
}
