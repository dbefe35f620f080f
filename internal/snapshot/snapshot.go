// Package snapshot models the per-page text of a document, extracted upstream.
// The validator never extracts text itself; it receives a snapshot alongside
// the original bytes.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Page is the extracted text of a single page, 1-indexed.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

// Snapshot is the immutable text view of one document. Content is the
// newline-joined concatenation of all pages, used as a matching fallback.
type Snapshot struct {
	Title   string `json:"title"`
	Pages   []Page `json:"pages"`
	Content string `json:"content"`
}

// Decode reads a snapshot from JSON, filling Content from the pages when the
// producer omitted it.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Content == "" {
		texts := make([]string, len(s.Pages))
		for i, p := range s.Pages {
			texts[i] = p.Text
		}
		s.Content = strings.Join(texts, "\n")
	}
	return &s, nil
}

// Load reads a snapshot from a JSON file.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// New builds a snapshot directly from page texts.
func New(title string, pageTexts []string) *Snapshot {
	s := &Snapshot{Title: title}
	texts := make([]string, len(pageTexts))
	for i, t := range pageTexts {
		s.Pages = append(s.Pages, Page{PageNumber: i + 1, Text: t})
		texts[i] = t
	}
	s.Content = strings.Join(texts, "\n")
	return s
}
