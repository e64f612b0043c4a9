// Package extract pulls plain text out of uploaded exam documents so the
// line parser can read them. Word documents are read natively; PDFs go
// through the poppler pdftotext binary.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFormat is returned for file extensions no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extractor dispatches on the file extension.
type Extractor struct {
	PDFToText string        // binary name or path
	Timeout   time.Duration // per pdftotext run
}

func New(pdftotext string, timeout time.Duration) *Extractor {
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{PDFToText: pdftotext, Timeout: timeout}
}

// Supported reports whether filename has an extension Text can read.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx", ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Text returns the document text with one paragraph per line.
func (e *Extractor) Text(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".docx":
		return Docx(data)
	case ".pdf":
		return e.pdf(ctx, data)
	case ".txt", ".md":
		return plain(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// plain passes UTF-8 through. Anything else is assumed to be a legacy
// Cyrillic export and decoded as Windows-1251.
func plain(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}
