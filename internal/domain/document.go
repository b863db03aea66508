package domain

import (
	"fmt"
	"strings"
)

// Page is one page of a source document.
type Page struct {
	Number int
	Text   string
}

// Document is a raw source file presented for ingestion. Documents are
// transient: once chunked and indexed only their chunks survive.
type Document struct {
	Filename string
	Pages    []Page
}

// Text returns the document's pages concatenated in order.
func (d *Document) Text() string {
	var out string
	for i, p := range d.Pages {
		if i > 0 {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// ValidateDocument validates a Document prior to ingestion.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.Filename == "" {
		return fmt.Errorf("document filename is required")
	}
	if strings.ContainsAny(d.Filename, `/\`) {
		return fmt.Errorf("document filename cannot contain path separators")
	}
	if len(d.Pages) == 0 {
		return fmt.Errorf("document must have at least one page")
	}
	return nil
}
