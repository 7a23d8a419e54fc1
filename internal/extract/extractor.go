// Package extract provides text extraction from uploaded document bytes.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"
)

// ErrExtraction is returned only when every configured extraction method
// failed for the input. Callers treat it as fatal for the document.
var ErrExtraction = errors.New("extract: all extraction methods failed")

// Result holds extracted text plus provenance for storage metadata.
type Result struct {
	Text      string
	PageCount int
	Method    string
}

// Extractor extracts plain text from document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and extracts its text.
func (e *Extractor) Extract(path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Base(path))
}

// ExtractBytes extracts text from content, choosing the method by filename
// extension. A format-specific extractor runs first; when it fails or yields
// no text, the generic converter and finally the plain-text reader are tried.
// Returns ErrExtraction (wrapped) when every method fails.
func (e *Extractor) ExtractBytes(content []byte, filename string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text  string
		pages int
		err   error
	)
	method := "native"

	switch ext {
	case ".pdf":
		text, pages, err = extractPDF(content)
	case ".docx":
		text, err = extractDOCX(content)
		method = "ooxml"
	case ".odt", ".rtf":
		text, err = extractWithCat(content, ext)
		method = "cat"
	case ".xlsx":
		text, err = extractExcel(content)
		method = "excelize"
	case ".pptx":
		text, err = extractPPTX(content)
		method = "ooxml"
	case ".txt", ".md", ".rst", "":
		text, err = extractPlain(content)
		method = "plain"
	default:
		text, err = extractPlain(content)
		method = "plain"
	}

	if err == nil && strings.TrimSpace(text) != "" {
		if pages == 0 {
			pages = estimatePageCount(text)
		}
		return &Result{Text: text, PageCount: pages, Method: method}, nil
	}
	firstErr := err

	// Fallback 1: generic converter for office formats.
	if ext == ".docx" || ext == ".odt" || ext == ".rtf" {
		if text, catErr := extractWithCat(content, ext); catErr == nil && strings.TrimSpace(text) != "" {
			return &Result{Text: text, PageCount: estimatePageCount(text), Method: "cat"}, nil
		}
	}

	// Fallback 2: plain text, but only when the bytes look textual. Binary
	// formats (PDF, ZIP containers) must not degrade into garbage clauses.
	if looksTextual(content) {
		if text, plainErr := extractPlain(content); plainErr == nil && strings.TrimSpace(text) != "" {
			return &Result{Text: text, PageCount: estimatePageCount(text), Method: "plain_fallback"}, nil
		}
	}

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, filename, firstErr)
	}
	return nil, fmt.Errorf("%w: %s: no text content", ErrExtraction, filename)
}

// extractWithCat converts office formats via lu4p/cat, which operates on
// files; content is staged in a temp file.
func extractWithCat(content []byte, ext string) (string, error) {
	f, err := os.CreateTemp("", "clauselens-*"+ext)
	if err != nil {
		return "", fmt.Errorf("stage temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	text, err := cat.File(f.Name())
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", ext, err)
	}
	return text, nil
}

// estimatePageCount approximates pages for formats without page structure.
// 3000 characters per page is the convention used for contract text.
func estimatePageCount(text string) int {
	pages := len(text)/3000 + 1
	return pages
}

// looksTextual reports whether content is plausibly text: no NUL bytes in
// the first 512 bytes.
func looksTextual(content []byte) bool {
	n := len(content)
	if n > 512 {
		n = 512
	}
	for _, b := range content[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}
