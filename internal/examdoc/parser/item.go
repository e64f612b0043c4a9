package parser

import (
	"strings"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
)

type Kind string

const (
	KindInstruction Kind = "INSTRUCTION"
	KindQuizSingle  Kind = "QUIZ_SINGLE"
	KindQuizMulti   Kind = "QUIZ_MULTI"
	KindReading     Kind = "READING"
	KindArrange     Kind = "ARRANGE"
	KindRewrite     Kind = "REWRITE"
	KindErrorCheck  Kind = "ERROR_CHECK"
	KindListening   Kind = "LISTENING"
	KindFillBlank   Kind = "FILL_BLANK"
	KindAudio       Kind = "AUDIO"
)

// tagKinds are the names a [TYPE: ...] tag may select. QUIZ_MULTI is absent on
// purpose: it is only ever derived from multiple correct flags.
var tagKinds = map[Kind]bool{
	KindInstruction: true,
	KindQuizSingle:  true,
	KindReading:     true,
	KindArrange:     true,
	KindRewrite:     true,
	KindErrorCheck:  true,
	KindListening:   true,
	KindFillBlank:   true,
	KindAudio:       true,
}

// KindFromTag resolves a type tag name. Unknown names degrade to QUIZ_SINGLE.
func KindFromTag(name string) Kind {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	if k := Kind(n); tagKinds[k] {
		return k
	}
	return KindQuizSingle
}

// IsChoice reports whether questions of this kind are answered by picking options.
func (k Kind) IsChoice() bool {
	switch k {
	case KindQuizSingle, KindQuizMulti, KindReading, KindListening, KindAudio:
		return true
	}
	return false
}

// Metadata is document level information collected while parsing.
type Metadata struct {
	Title string `json:"title,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Item is either an instruction (Kind == KindInstruction) or a question.
type Item struct {
	SequenceID       int        `json:"sequence_id"`
	Kind             Kind       `json:"kind"`
	Level            cefr.Level `json:"level,omitempty"`
	Text             string     `json:"text"`
	Passage          string     `json:"passage,omitempty"`
	MediaSrc         string     `json:"media_src,omitempty"`
	Options          []string   `json:"options,omitempty"`
	Correct          *Answer    `json:"correct,omitempty"`
	TextProcessed    string     `json:"text_processed,omitempty"`
	CorrectBlanks    []string   `json:"correct_blanks,omitempty"`
	OriginalSentence string     `json:"original_sentence,omitempty"`
	Words            []string   `json:"words,omitempty"`
}

func (it Item) IsInstruction() bool { return it.Kind == KindInstruction }

// Result is the outcome of one Parse call.
type Result struct {
	Meta  Metadata `json:"metadata"`
	Items []Item   `json:"items"`
}

// Questions returns the non-instruction items.
func (r Result) Questions() []Item {
	out := make([]Item, 0, len(r.Items))
	for _, it := range r.Items {
		if !it.IsInstruction() {
			out = append(out, it)
		}
	}
	return out
}
