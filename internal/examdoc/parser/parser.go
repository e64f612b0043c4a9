// Package parser turns the plain text of an exam document into ordered exam
// items. The format is line oriented: bracketed tags change parser state
// ([TYPE: ...], [LEVEL: ...], [SRC: ...]), numbered lines open questions and
// option/key lines attach to the question that is currently open.
package parser

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
)

// ErrNoContent is returned when a document yields no items at all.
var ErrNoContent = errors.New("no exam items found; check the file format")

type parser struct {
	meta  Metadata
	items []Item

	currentType  Kind
	currentLevel cefr.Level
	currentMedia string

	open    *Item
	options []string
	flags   []int

	passage   []string
	inPassage bool

	seq int
}

// Parse scans text once, top to bottom. Malformed lines degrade instead of
// failing; the only error is ErrNoContent.
func Parse(text string) (Result, error) {
	p := &parser{currentType: KindQuizSingle, currentLevel: cefr.A1}
	for _, line := range splitLines(text) {
		if line == "" {
			if p.inPassage && len(p.passage) > 0 {
				p.passage = append(p.passage, "")
			}
			continue
		}
		p.feed(line)
	}
	p.flush()
	if len(p.items) == 0 {
		return Result{Meta: p.meta}, ErrNoContent
	}
	return Result{Meta: p.meta, Items: p.items}, nil
}

func (p *parser) feed(line string) {
	for _, r := range rules {
		rest, s := r.apply(p, line)
		switch s {
		case stop:
			return
		case carry:
			line = strings.TrimSpace(rest)
			if line == "" {
				return
			}
		}
	}
}

func (p *parser) openQuestion(text string) {
	p.flush()
	kind := p.currentType
	if kind == KindInstruction {
		kind = KindQuizSingle
	}
	q := &Item{
		Kind:     kind,
		Level:    p.currentLevel,
		Text:     text,
		MediaSrc: p.currentMedia,
	}
	if pas := strings.TrimSpace(strings.Join(p.passage, "\n")); pas != "" {
		q.Passage = pas
	}
	p.open = q
}

func (p *parser) ensureOpen() {
	if p.open == nil {
		p.openQuestion("")
	}
}

// flush finalizes the open question and appends it to the output.
func (p *parser) flush() {
	q := p.open
	if q == nil {
		return
	}
	p.open = nil

	if q.Kind == KindFillBlank {
		q.TextProcessed, q.CorrectBlanks = extractBlanks(q.Text)
	}
	if len(p.options) > 0 {
		q.Options = p.options
	}
	switch len(p.flags) {
	case 0:
	case 1:
		q.Correct = IndexAnswer(p.flags[0])
	default:
		q.Correct = IndicesAnswer(p.flags...)
	}
	// the final key decides: only a set of two or more indices is QUIZ_MULTI
	if idx, ok := q.Correct.Indices(); ok && len(idx) > 1 {
		q.Kind = KindQuizMulti
	}
	// TODO(product): confirm that unanswered choice questions should key to option A.
	if q.Correct == nil && (q.Kind.IsChoice() || len(q.Options) > 0) {
		q.Correct = IndexAnswer(0)
	}
	p.options, p.flags = nil, nil
	p.emit(*q)
}

func (p *parser) emit(it Item) {
	p.seq++
	it.SequenceID = p.seq
	p.items = append(p.items, it)
}

func splitLines(text string) []string {
	text = norm.NFC.String(text)
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00a0", " ").Replace(text)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}
