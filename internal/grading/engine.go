package grading

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type   string
	Points float64
	Key    string // stored correct_key: "1", "0,2", free text, or blanks joined by "|"
}

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints float64
	MaxPoints  float64
	Feedback   []string
}

// Correct reports full credit.
func (r Result) Correct() bool { return r.MaxPoints > 0 && r.AutoPoints >= r.MaxPoints }

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, response any) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response any) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
	fallback   Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response any) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		s = g.fallback
	}
	return s.Grade(ctx, q, response)
}

// Engine options

type Option func(*config)

type config struct {
	MaxEditDistance   int  // fuzzy half credit for free-text answers
	AllowPartialMulti bool // partial credit for QUIZ_MULTI without false positives
	AllowPartialBlank bool // per-blank credit for FILL_BLANK
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }
func WithPartialBlanks(b bool) Option  { return func(c *config) { c.AllowPartialBlank = b } }

// NewDefaultGrader installs built-in strategies keyed by question kind.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance:   1,
		AllowPartialMulti: false,
		AllowPartialBlank: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	choice := choiceStrategy{}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"QUIZ_SINGLE": choice,
			"READING":     choice,
			"LISTENING":   choice,
			"AUDIO":       choice,
			"QUIZ_MULTI":  multiStrategy{allowPartial: cfg.AllowPartialMulti},
			"REWRITE":     textStrategy{maxEdit: cfg.MaxEditDistance},
			"ERROR_CHECK": textStrategy{maxEdit: cfg.MaxEditDistance},
			"ARRANGE":     textStrategy{},
			"FILL_BLANK":  blanksStrategy{allowPartial: cfg.AllowPartialBlank},
		},
		fallback: exactStrategy{},
	}
}

// --- Strategies ---

// choiceStrategy accepts an option index (number or numeric string) or an
// option letter. A key that is not an index ("Đáp án: Москва" on an item
// without options) is compared as text.
type choiceStrategy struct{}

func (choiceStrategy) Grade(ctx context.Context, q Q, response any) (Result, error) {
	want, err := strconv.Atoi(strings.TrimSpace(q.Key))
	if err != nil {
		return exactStrategy{}.Grade(ctx, q, response)
	}
	res := Result{MaxPoints: q.Points}
	idx, err := toIndex(response)
	if err != nil {
		return res, err
	}
	if idx == want {
		res.AutoPoints = q.Points
	}
	return res, nil
}

type multiStrategy struct{ allowPartial bool }

func (s multiStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	respIdx, err := toIndexSet(response)
	if err != nil {
		return res, err
	}
	correct := toSet(splitKey(q.Key, ","))
	resp := toSet(respIdx)

	if setEqual(correct, resp) {
		res.AutoPoints = q.Points
		return res, nil
	}
	hasFalsePositive := false
	for r := range resp {
		if _, ok := correct[r]; !ok {
			hasFalsePositive = true
			break
		}
	}
	if s.allowPartial && !hasFalsePositive && len(correct) > 0 {
		inter := 0
		for k := range resp {
			if _, ok := correct[k]; ok {
				inter++
			}
		}
		res.AutoPoints = q.Points * (float64(inter) / float64(len(correct)))
	}
	return res, nil
}

type textStrategy struct{ maxEdit int }

func (s textStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, fmt.Errorf("response must be string, got %T", response)
	}
	nk, nr := normalize(q.Key), normalize(resp)
	if nk == "" {
		return res, nil
	}
	if nk == nr {
		res.AutoPoints = q.Points
		return res, nil
	}
	if s.maxEdit > 0 && levenshtein(nk, nr) <= s.maxEdit {
		res.AutoPoints = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}

// blanksStrategy compares each blank in order. The response is either a list
// of strings or one string joined by "|".
type blanksStrategy struct{ allowPartial bool }

func (s blanksStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	want := strings.Split(q.Key, "|")
	var got []string
	switch v := response.(type) {
	case string:
		got = strings.Split(v, "|")
	default:
		arr, ok := toStringSlice(response)
		if !ok {
			return res, fmt.Errorf("response must be string or []string, got %T", response)
		}
		got = arr
	}
	hits := 0
	for i, w := range want {
		if i < len(got) && normalize(w) == normalize(got[i]) {
			hits++
		}
	}
	switch {
	case hits == len(want):
		res.AutoPoints = q.Points
	case s.allowPartial && len(want) > 0:
		res.AutoPoints = q.Points * float64(hits) / float64(len(want))
		res.Feedback = append(res.Feedback, fmt.Sprintf("blanks: %d/%d", hits, len(want)))
	}
	return res, nil
}

// exactStrategy is the case-insensitive comparison used for kinds without a
// dedicated strategy.
type exactStrategy struct{}

func (exactStrategy) Grade(_ context.Context, q Q, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if strings.EqualFold(strings.TrimSpace(fmt.Sprint(response)), strings.TrimSpace(q.Key)) {
		res.AutoPoints = q.Points
	}
	return res, nil
}

// helpers

func toIndex(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("response %v is not an option index", t)
		}
		return int(t), nil
	case string:
		s := strings.TrimSpace(t)
		if len(s) == 1 {
			c := s[0] | 0x20
			if c >= 'a' && c <= 'd' {
				return int(c - 'a'), nil
			}
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("response %q is not an option index", t)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("response must be an option index, got %T", v)
	}
}

func toIndexSet(v any) ([]string, error) {
	var parts []any
	switch t := v.(type) {
	case string:
		for _, p := range splitKey(t, ",") {
			parts = append(parts, p)
		}
	case []any:
		parts = t
	case []int:
		for _, i := range t {
			parts = append(parts, i)
		}
	case []string:
		for _, s := range t {
			parts = append(parts, s)
		}
	default:
		return nil, fmt.Errorf("response must be a list of option indices, got %T", v)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		i, err := toIndex(p)
		if err != nil {
			return nil, err
		}
		out = append(out, strconv.Itoa(i))
	}
	return out, nil
}

func splitKey(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
