// Package extract converts uploaded document files into plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrExtraction wraps every failure to pull text out of a document.
var ErrExtraction = errors.New("extraction failed")

// extractFunc turns raw file bytes into plain text.
type extractFunc func(content []byte) (string, error)

// formats maps a lowercase extension (with dot) to its extractor.
var formats = map[string]extractFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractWordXML,
	".xlsx": extractWorkbook,
	".pptx": extractSlides,
	".odp":  extractOpenDocument,
	".ods":  extractOpenDocument,
	".odt":  extractCat,
	".rtf":  extractCat,
}

// Extractor extracts plain text from document files by extension.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether files with the given extension can be extracted.
// ext includes the leading dot and is matched case-insensitively.
func (e *Extractor) Supported(ext string) bool {
	_, ok := formats[strings.ToLower(ext)]
	return ok
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %v", ErrExtraction, err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on ext (leading dot
// included). An unsupported extension yields empty text and no error; the
// caller decides whether that means skip or reject.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := formats[strings.ToLower(ext)]
	if !ok {
		return "", nil
	}
	text, err := fn(content)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, strings.TrimPrefix(strings.ToLower(ext), "."), err)
	}
	return text, nil
}
