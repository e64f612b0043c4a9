package examdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/parser"
	"github.com/russianmaster/russianmaster-lms/internal/storage"
	syncx "github.com/russianmaster/russianmaster-lms/internal/sync"
)

var (
	// ErrExtract wraps every failure to turn an upload into text.
	ErrExtract = errors.New("extract text")
	// ErrAudioUpload wraps audio upload failures when audio is required.
	ErrAudioUpload = errors.New("audio upload failed")
)

// TextExtractor is satisfied by *extract.Extractor.
type TextExtractor interface {
	Text(ctx context.Context, filename string, data []byte) (string, error)
}

// File is one uploaded file held in memory.
type File struct {
	Name string
	Data []byte
}

type Request struct {
	Document File
	Title    string
	Duration int   // minutes
	Audio    *File // optional test-level audio
}

// Importer runs extract, parse, materialize, upload and persist.
type Importer struct {
	Extractor    TextExtractor
	Store        exam.Store
	Blobs        storage.BlobStore // nil disables audio upload
	Events       syncx.Appender    // optional
	RequireAudio bool              // reject the import when the audio upload fails
}

// Parse extracts and parses a document without persisting anything.
func (im *Importer) Parse(ctx context.Context, doc File) (parser.Result, error) {
	text, err := im.Extractor.Text(ctx, doc.Name, doc.Data)
	if err != nil {
		return parser.Result{}, fmt.Errorf("%w: %w", ErrExtract, err)
	}
	if err := ctx.Err(); err != nil {
		return parser.Result{}, err
	}
	return parser.Parse(text)
}

// Import persists a new test built from req. A failed audio upload after a
// successful parse only fails the import when RequireAudio is set.
func (im *Importer) Import(ctx context.Context, req Request) (exam.Test, error) {
	res, err := im.Parse(ctx, req.Document)
	if err != nil {
		return exam.Test{}, err
	}
	t, err := Materialize(res, req.Title, req.Duration, req.Document.Name)
	if err != nil {
		return exam.Test{}, err
	}

	if req.Audio != nil && len(req.Audio.Data) > 0 {
		url, err := im.uploadAudio(ctx, *req.Audio)
		switch {
		case err == nil:
			t.AudioURL = url
		case im.RequireAudio:
			return exam.Test{}, fmt.Errorf("%w: %v", ErrAudioUpload, err)
		default:
			log.Printf("[import] audio %q not attached to %q: %v", req.Audio.Name, t.Title, err)
		}
	}

	if err := im.Store.PutTest(ctx, t); err != nil {
		return exam.Test{}, fmt.Errorf("save test: %w", err)
	}
	im.emit(ctx, syncx.TypeTestImported, t.ID, map[string]any{
		"title":     t.Title,
		"source":    req.Document.Name,
		"questions": len(t.Questions),
		"items":     len(res.Items),
	})
	return t, nil
}

func (im *Importer) uploadAudio(ctx context.Context, f File) (string, error) {
	if im.Blobs == nil {
		return "", errors.New("no blob store configured")
	}
	return storage.Upload(ctx, im.Blobs, "audio", f.Name, bytes.NewReader(f.Data))
}

func (im *Importer) emit(ctx context.Context, typ, key string, payload any) {
	if im.Events == nil {
		return
	}
	e, err := syncx.NewEvent(typ, key, payload)
	if err == nil {
		err = im.Events.Append(ctx, e)
	}
	if err != nil {
		log.Printf("[import] event %s for %s: %v", typ, key, err)
	}
}
