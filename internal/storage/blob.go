package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrEmptyKey = errors.New("empty key")

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PublicURL(key string) string
}

// Upload stores r under a fresh random key that keeps the original
// extension, and returns the public URL of the stored object.
func Upload(ctx context.Context, bs BlobStore, prefix, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	key := uuid.NewString() + ext
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	stored, err := bs.Put(ctx, key, r, ContentType(ext))
	if err != nil {
		return "", err
	}
	return bs.PublicURL(stored), nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", ErrEmptyKey
	}
	return key, nil
}

// audio types are not in every system mime table
var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
}

// ContentType resolves a file extension to a MIME type.
func ContentType(ext string) string {
	ext = strings.ToLower(ext)
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
