package exam

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a test or result does not exist.
var ErrNotFound = errors.New("not found")

type ListOpts struct {
	Q      string // case-insensitive title filter
	Limit  int
	Offset int
}

type ResultListOpts struct {
	TestID string
	UserID string
	Limit  int
	Offset int
}

type Store interface {
	PutTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (Test, error)      // student-safe (no answer keys)
	GetTestAdmin(ctx context.Context, id string) (Test, error) // full test, for export and scoring
	ListTests(ctx context.Context, opts ListOpts) ([]TestSummary, error)
	DeleteTest(ctx context.Context, id string) error // removes questions and results too

	SaveResult(ctx context.Context, r Result) error
	ListResults(ctx context.Context, opts ResultListOpts) ([]Result, error)
	GetResult(ctx context.Context, id string) (Result, error)
	// SetFeedback stores an admin comment on a result and marks it reviewed.
	SetFeedback(ctx context.Context, resultID, feedback string) (Result, error)
}

// StripAnswers returns a copy of t that is safe to show to a student: answer
// keys are cleared and fill-blank text is replaced by its placeholder form.
func StripAnswers(t Test) Test {
	processed := map[int]string{}
	if len(t.QuestionsData) > 0 {
		var items []map[string]any
		if err := json.Unmarshal(t.QuestionsData, &items); err == nil {
			for _, it := range items {
				delete(it, "correct")
				delete(it, "correct_blanks")
				if tp, ok := it["text_processed"].(string); ok {
					it["text"] = tp
					if seq, ok := it["sequence_id"].(float64); ok {
						processed[int(seq)] = tp
					}
				}
			}
			if b, err := json.Marshal(items); err == nil {
				t.QuestionsData = b
			}
		}
	}
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.CorrectKey = ""
		if tp, ok := processed[q.Position]; ok {
			q.Content = tp
		}
		qs[i] = q
	}
	t.Questions = qs
	return t
}

func clampList(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
