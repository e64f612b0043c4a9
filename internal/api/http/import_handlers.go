package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/russianmaster/russianmaster-lms/internal/examdoc"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/parser"
)

// POST /admin/tests/import (multipart: file, title, duration, audio?)
func ImportTestHandler(im *examdoc.Importer, maxMB int, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseUpload(w, r, maxMB) {
			return
		}
		doc, ok := formFile(w, r, "file", true)
		if !ok {
			return
		}
		duration, err := strconv.Atoi(strings.TrimSpace(r.FormValue("duration")))
		if err != nil || duration <= 0 {
			http.Error(w, "duration (minutes) required", http.StatusBadRequest)
			return
		}
		audio, ok := formFile(w, r, "audio", false)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		req := examdoc.Request{
			Document: *doc,
			Title:    strings.TrimSpace(r.FormValue("title")),
			Duration: duration,
			Audio:    audio,
		}
		t, err := im.Import(ctx, req)
		if err != nil {
			http.Error(w, err.Error(), importStatus(err))
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"test_id":   t.ID,
			"title":     t.Title,
			"questions": len(t.Questions),
			"audio_url": t.AudioURL,
		})
	}
}

// POST /admin/tests/preview (multipart: file) parses without saving.
func PreviewHandler(im *examdoc.Importer, maxMB int, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseUpload(w, r, maxMB) {
			return
		}
		doc, ok := formFile(w, r, "file", true)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		res, err := im.Parse(ctx, *doc)
		if err != nil {
			http.Error(w, err.Error(), importStatus(err))
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func importStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, parser.ErrNoContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, examdoc.ErrExtract):
		return http.StatusBadRequest
	case errors.Is(err, examdoc.ErrAudioUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseUpload(w http.ResponseWriter, r *http.Request, maxMB int) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "multipart form required", http.StatusBadRequest)
		return false
	}
	return true
}

// formFile reads one multipart file into memory. A missing optional file
// yields (nil, true).
func formFile(w http.ResponseWriter, r *http.Request, field string, required bool) (*examdoc.File, bool) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) && !required {
		return nil, true
	}
	if err != nil {
		http.Error(w, field+" required", http.StatusBadRequest)
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "read "+field+": "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &examdoc.File{Name: hdr.Filename, Data: data}, true
}
