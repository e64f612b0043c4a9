// Package export writes parsed items back out in the directive text format,
// so a stored test can be downloaded, edited and imported again.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/parser"
)

const optionLetters = "ABCD"

// FromTest renders a stored test. It needs the admin view (answer keys intact).
func FromTest(t exam.Test) (string, error) {
	var items []parser.Item
	if len(t.QuestionsData) > 0 {
		if err := json.Unmarshal(t.QuestionsData, &items); err != nil {
			return "", fmt.Errorf("decode questions_data: %w", err)
		}
	}
	return Render(parser.Metadata{Title: t.Title, Audio: t.AudioURL}, items), nil
}

// Render emits tags only when the parser state they set actually changes.
func Render(meta parser.Metadata, items []parser.Item) string {
	w := &writer{typ: parser.KindQuizSingle, level: cefr.A1}
	if meta.Title != "" {
		w.line("#EXAM_TITLE: " + meta.Title)
	}
	if meta.Audio != "" {
		w.line("#EXAM_AUDIO: " + meta.Audio)
	}
	for _, it := range items {
		if it.IsInstruction() {
			w.instruction(it)
			continue
		}
		w.question(it)
	}
	return w.b.String()
}

type writer struct {
	b       strings.Builder
	typ     parser.Kind
	level   cefr.Level
	media   string
	passage string
	n       int
}

func (w *writer) line(s string) {
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *writer) instruction(it parser.Item) {
	// the INSTRUCTION mode makes any text an instruction, whatever its wording
	w.setType(parser.KindInstruction)
	w.line("[TYPE: INSTRUCTION] " + it.Text)
}

func (w *writer) question(it parser.Item) {
	tag := it.Kind
	if tag == parser.KindQuizMulti {
		tag = parser.KindQuizSingle // re-derived from the flags
	}
	if tag != w.typ || (it.Passage == "" && w.passage != "") {
		w.setType(tag)
		w.line("[TYPE: " + string(tag) + "]")
	}
	if lvl := levelOf(it); lvl != w.level {
		w.level = lvl
		w.line("[LEVEL: " + lvl.String() + "]")
	}
	if it.MediaSrc != w.media {
		w.media = it.MediaSrc
		w.line("[SRC: " + it.MediaSrc + "]")
	}
	if it.Passage != "" && it.Passage != w.passage {
		w.passage = it.Passage
		w.line("[PASSAGE]")
		w.line(it.Passage)
		w.line("[/PASSAGE]")
	}

	w.n++
	w.line(fmt.Sprintf("Câu %d: %s", w.n, it.Text))
	if it.OriginalSentence != "" {
		w.line("Org: " + it.OriginalSentence)
	}
	if len(it.Words) > 0 {
		w.line("Words: " + strings.Join(it.Words, " / "))
	}

	flagged := map[int]bool{}
	if i, ok := it.Correct.Index(); ok {
		flagged[i] = true
	}
	if idx, ok := it.Correct.Indices(); ok {
		for _, i := range idx {
			flagged[i] = true
		}
	}
	for i, opt := range it.Options {
		if i >= len(optionLetters) {
			break
		}
		s := fmt.Sprintf("%c. %s", optionLetters[i], opt)
		if flagged[i] {
			s += " | True"
		}
		w.line(s)
	}
	if len(it.Options) == 0 {
		w.key(it)
	}
	if s, ok := it.Correct.Text(); ok && len(it.Options) > 0 {
		w.line("Key: " + s)
	}
}

// key writes answers that options cannot carry.
func (w *writer) key(it parser.Item) {
	if s, ok := it.Correct.Text(); ok {
		w.line("Key: " + s)
		return
	}
	if idx, ok := it.Correct.Indices(); ok {
		letters := make([]string, 0, len(idx))
		for _, i := range idx {
			if i >= 0 && i < len(optionLetters) {
				letters = append(letters, optionLetters[i:i+1])
			}
		}
		w.line("Key: " + strings.Join(letters, ", "))
		return
	}
	if i, ok := it.Correct.Index(); ok && i != 0 && i < len(optionLetters) {
		w.line("Key: " + optionLetters[i:i+1])
	}
}

func (w *writer) setType(k parser.Kind) {
	w.typ = k
	w.passage = ""
}

func levelOf(it parser.Item) cefr.Level {
	if it.Level.Valid() {
		return it.Level
	}
	return cefr.A1
}
