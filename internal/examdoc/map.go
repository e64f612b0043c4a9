// Package examdoc turns uploaded exam documents into persisted tests:
// extract text, parse it, materialize the items into an exam.Test and
// optionally attach an uploaded audio file.
package examdoc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/parser"
)

// DefaultTitle is used when neither the document nor the caller names the test.
const DefaultTitle = "Imported test"

// Materialize maps a parse result onto a new exam.Test. The full item list is
// kept verbatim as QuestionsData; one typed Question is built per
// non-instruction item.
func Materialize(res parser.Result, callerTitle string, duration int, sourceName string) (exam.Test, error) {
	data, err := json.Marshal(res.Items)
	if err != nil {
		return exam.Test{}, fmt.Errorf("encode items: %w", err)
	}
	t := exam.Test{
		ID:            uuid.NewString(),
		Title:         pickTitle(res.Meta.Title, callerTitle),
		Description:   "Imported from " + sourceName,
		Duration:      duration,
		AudioURL:      res.Meta.Audio,
		QuestionsData: data,
	}
	for _, it := range res.Items {
		if it.IsInstruction() {
			continue
		}
		q, err := questionFromItem(t.ID, it)
		if err != nil {
			return exam.Test{}, err
		}
		t.Questions = append(t.Questions, q)
	}
	return t, nil
}

func questionFromItem(testID string, it parser.Item) (exam.Question, error) {
	level := it.Level
	if !level.Valid() {
		level = cefr.A1
	}
	q := exam.Question{
		ID:              uuid.NewString(),
		TestID:          testID,
		Position:        it.SequenceID,
		Content:         it.Text,
		Type:            string(it.Kind),
		DifficultyLevel: level,
		ScoreWeight:     float64(level.Weight()),
		CorrectKey:      it.Correct.String(),
	}
	if len(it.Options) > 0 {
		b, err := json.Marshal(it.Options)
		if err != nil {
			return exam.Question{}, fmt.Errorf("encode options of item %d: %w", it.SequenceID, err)
		}
		q.OptionsJSON = b
	}
	if q.CorrectKey == "" && it.Kind == parser.KindFillBlank {
		q.CorrectKey = strings.Join(it.CorrectBlanks, "|")
	}
	return q, nil
}

func pickTitle(docTitle, callerTitle string) string {
	if t := strings.TrimSpace(docTitle); t != "" {
		return t
	}
	if t := strings.TrimSpace(callerTitle); t != "" {
		return t
	}
	return DefaultTitle
}
