package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type answerForm int

const (
	formIndex answerForm = iota
	formIndices
	formText
)

// Answer is the correct answer of a question: one option index, an ordered
// set of option indices, or free text.
type Answer struct {
	form    answerForm
	index   int
	indices []int
	text    string
}

func IndexAnswer(i int) *Answer { return &Answer{form: formIndex, index: i} }

func IndicesAnswer(idx ...int) *Answer {
	return &Answer{form: formIndices, indices: append([]int(nil), idx...)}
}

func TextAnswer(s string) *Answer { return &Answer{form: formText, text: s} }

func (a *Answer) Index() (int, bool) {
	if a == nil || a.form != formIndex {
		return 0, false
	}
	return a.index, true
}

func (a *Answer) Indices() ([]int, bool) {
	if a == nil || a.form != formIndices {
		return nil, false
	}
	return append([]int(nil), a.indices...), true
}

func (a *Answer) Text() (string, bool) {
	if a == nil || a.form != formText {
		return "", false
	}
	return a.text, true
}

// String renders the answer as a scoring key: "1", "0,2" or the text itself.
func (a *Answer) String() string {
	if a == nil {
		return ""
	}
	switch a.form {
	case formIndex:
		return strconv.Itoa(a.index)
	case formIndices:
		parts := make([]string, len(a.indices))
		for i, v := range a.indices {
			parts[i] = strconv.Itoa(v)
		}
		return strings.Join(parts, ",")
	default:
		return a.text
	}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.form {
	case formIndex:
		return json.Marshal(a.index)
	case formIndices:
		return json.Marshal(a.indices)
	default:
		return json.Marshal(a.text)
	}
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty answer")
	}
	switch b[0] {
	case '[':
		var idx []int
		if err := json.Unmarshal(b, &idx); err != nil {
			return fmt.Errorf("answer indices: %w", err)
		}
		*a = Answer{form: formIndices, indices: idx}
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("answer text: %w", err)
		}
		*a = Answer{form: formText, text: s}
	default:
		var i int
		if err := json.Unmarshal(b, &i); err != nil {
			return fmt.Errorf("answer index: %w", err)
		}
		*a = Answer{form: formIndex, index: i}
	}
	return nil
}
