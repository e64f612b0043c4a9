package http

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/russianmaster/russianmaster-lms/internal/storage"
)

// MountAssets serves stored blobs: GET /assets/* returns whatever follows /assets/.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(r.Context(), key)
		switch {
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, storage.ErrEmptyKey):
			http.Error(w, "not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", storage.ContentType(path.Ext(key)))
		_, _ = io.Copy(w, rc)
	})
}

// POST /admin/media (multipart: file) stores a media file and returns its
// public URL, ready for a [SRC: ...] tag.
func MediaUploadHandler(bs storage.BlobStore, maxMB int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !parseUpload(w, r, maxMB) {
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		url, err := storage.Upload(r.Context(), bs, "media", hdr.Filename, f)
		if err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusBadGateway)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"url": url})
	}
}
