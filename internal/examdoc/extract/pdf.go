package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

func (e *Extractor) pdf(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "exam-*.pdf")
	if err != nil {
		return "", err
	}
	defer func() { f.Close(); os.Remove(f.Name()) }()
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return e.pdfPath(ctx, f.Name())
}

func (e *Extractor) pdfPath(ctx context.Context, inPath string) (string, error) {
	bin, err := exec.LookPath(e.PDFToText)
	if err != nil {
		return "", fmt.Errorf("pdf: %s not found in PATH", e.PDFToText)
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, bin, "-layout", "-enc", "UTF-8", inPath, "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("pdf: pdftotext: %w", ctx.Err())
		}
		return "", fmt.Errorf("pdf: pdftotext failed: %s", strings.TrimSpace(stderr.String()))
	}
	// pdftotext separates pages with form feeds
	return strings.ReplaceAll(out.String(), "\f", "\n"), nil
}
