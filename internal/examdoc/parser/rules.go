package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
)

var (
	titleRe        = regexp.MustCompile(`(?i)^#EXAM_TITLE\s*:\s*(.*)$`)
	audioRe        = regexp.MustCompile(`(?i)^#EXAM_AUDIO\s*:\s*(.*)$`)
	srcRe          = regexp.MustCompile(`(?i)\[SRC\s*:\s*([^\]]*)\]`)
	levelRe        = regexp.MustCompile(`(?i)\[LEVEL\s*:\s*([^\]]*)\]`)
	typeRe         = regexp.MustCompile(`(?i)\[TYPE\s*:\s*([^\]]*)\]`)
	passageOpenRe  = regexp.MustCompile(`(?i)\[PASSAGE\]`)
	passageCloseRe = regexp.MustCompile(`(?i)\[/PASSAGE\]`)
	instructionRe  = regexp.MustCompile(`(?i)^(?:(?:Part|Task|Exercise|Bài|Phần)(?:[\s\d:.\-–]|$)|Read the following|Choose the (?:word|correct|best)|Listen to|Listen and|Fill in)`)
	questionRe     = regexp.MustCompile(`(?i)^(?:\{Q\s*\d+\}\s*[:.]?|(?:Câu|Question)\s*\d+\s*[:.]|\d+\s*[.)])\s*(.*)$`)
	optionRe       = regexp.MustCompile(`(?i)^([A-D])\s*[.):]\s*(.*)$`)
	trueMarkRe     = regexp.MustCompile(`(?i)\s*\|\s*true\s*$`)
	answerRe       = regexp.MustCompile(`(?i)^(Key|Answer|Đáp án|Org|Words)\s*:\s*(.*)$`)
	letterKeyRe    = regexp.MustCompile(`(?i)^[A-D](?:\s*[,;/ ]\s*[A-D])*$`)
	letterRe       = regexp.MustCompile(`(?i)[A-D]`)
)

// step tells the line loop what to do after a rule ran.
type step int

const (
	next  step = iota // rule did not apply, try the next one with the same line
	carry             // rule consumed a tag, keep classifying the returned remainder
	stop              // line fully handled
)

type rule struct {
	name  string
	apply func(p *parser, line string) (string, step)
}

// rules is the classification precedence, highest first. A line walks the
// table once; tag rules strip what they consume and hand the rest down.
var rules = []rule{
	{"passage-body", (*parser).passageBody},
	{"title", (*parser).title},
	{"media", (*parser).media},
	{"level", (*parser).level},
	{"type", (*parser).typeTag},
	{"passage", (*parser).passageDelimiter},
	{"instruction", (*parser).instruction},
	{"question", (*parser).question},
	{"option", (*parser).option},
	{"answer", (*parser).answer},
	{"continuation", (*parser).continuation},
}

// lastGroup returns the first capture group of the last match of re in line.
func lastGroup(re *regexp.Regexp, line string) (string, bool) {
	all := re.FindAllStringSubmatch(line, -1)
	if len(all) == 0 {
		return "", false
	}
	return strings.TrimSpace(all[len(all)-1][1]), true
}

func (p *parser) passageBody(line string) (string, step) {
	if !p.inPassage {
		return line, next
	}
	loc := passageCloseRe.FindStringIndex(line)
	if loc == nil {
		p.passage = append(p.passage, line)
		return "", stop
	}
	if before := strings.TrimSpace(line[:loc[0]]); before != "" {
		p.passage = append(p.passage, before)
	}
	p.inPassage = false
	return line[loc[1]:], carry
}

func (p *parser) title(line string) (string, step) {
	if m := titleRe.FindStringSubmatch(line); m != nil {
		p.meta.Title = strings.TrimSpace(m[1])
		return "", stop
	}
	if m := audioRe.FindStringSubmatch(line); m != nil {
		p.meta.Audio = strings.TrimSpace(m[1])
		return "", stop
	}
	return line, next
}

func (p *parser) media(line string) (string, step) {
	src, ok := lastGroup(srcRe, line)
	if !ok {
		return line, next
	}
	p.currentMedia = src
	return srcRe.ReplaceAllString(line, " "), carry
}

func (p *parser) level(line string) (string, step) {
	name, ok := lastGroup(levelRe, line)
	if !ok {
		return line, next
	}
	p.currentLevel = cefr.Parse(name)
	return levelRe.ReplaceAllString(line, " "), carry
}

func (p *parser) typeTag(line string) (string, step) {
	name, ok := lastGroup(typeRe, line)
	if !ok {
		return line, next
	}
	p.flush()
	p.currentType = KindFromTag(name)
	p.passage = nil
	p.inPassage = false
	return typeRe.ReplaceAllString(line, " "), carry
}

func (p *parser) passageDelimiter(line string) (string, step) {
	if loc := passageOpenRe.FindStringIndex(line); loc != nil {
		p.passage = nil
		p.inPassage = true
		rest := line[loc[1]:]
		if strings.TrimSpace(rest) == "" {
			return "", stop
		}
		// a one-line passage, possibly closed on the same line
		return p.passageBody(strings.TrimSpace(rest))
	}
	if loc := passageCloseRe.FindStringIndex(line); loc != nil {
		return line[:loc[0]] + " " + line[loc[1]:], carry
	}
	return line, next
}

// startsQuestion is checked before the instruction heuristic so that a line
// such as "1. Read the following text" opens a question.
func (p *parser) startsQuestion(line string) bool {
	if questionRe.MatchString(line) {
		return true
	}
	return p.currentType == KindFillBlank && p.open == nil && blankRe.MatchString(line)
}

func (p *parser) instruction(line string) (string, step) {
	if p.startsQuestion(line) {
		return line, next
	}
	if !instructionRe.MatchString(line) && !(p.currentType == KindInstruction && p.open == nil) {
		return line, next
	}
	p.flush()
	p.emit(Item{Kind: KindInstruction, Text: line})
	return "", stop
}

func (p *parser) question(line string) (string, step) {
	if m := questionRe.FindStringSubmatch(line); m != nil {
		p.openQuestion(strings.TrimSpace(m[1]))
		return "", stop
	}
	if p.currentType == KindFillBlank && p.open == nil && blankRe.MatchString(line) {
		p.openQuestion(line)
		return "", stop
	}
	return line, next
}

func (p *parser) option(line string) (string, step) {
	if p.open == nil {
		return line, next
	}
	m := optionRe.FindStringSubmatch(line)
	if m == nil {
		return line, next
	}
	text := strings.TrimSpace(m[2])
	if loc := trueMarkRe.FindStringIndex(text); loc != nil {
		text = strings.TrimSpace(text[:loc[0]])
		p.flags = append(p.flags, len(p.options))
	}
	p.options = append(p.options, text)
	return "", stop
}

func (p *parser) answer(line string) (string, step) {
	m := answerRe.FindStringSubmatch(line)
	if m == nil {
		return line, next
	}
	value := strings.TrimSpace(m[2])
	switch strings.ToLower(m[1]) {
	case "org":
		p.ensureOpen()
		p.open.OriginalSentence = value
	case "words":
		p.ensureOpen()
		p.open.Words = splitWords(value)
	default:
		if p.open == nil {
			return "", stop
		}
		p.open.Correct = p.keyAnswer(value)
	}
	return "", stop
}

// keyAnswer reads a Key/Answer value. Option letters become indices when the
// question is answered by choice; everything else is kept as text.
func (p *parser) keyAnswer(value string) *Answer {
	choice := len(p.options) > 0 || p.open.Kind.IsChoice()
	if !choice || !letterKeyRe.MatchString(value) {
		return TextAnswer(value)
	}
	letters := letterRe.FindAllString(value, -1)
	idx := make([]int, len(letters))
	for i, l := range letters {
		idx[i] = int(unicode.ToUpper(rune(l[0])) - 'A')
	}
	if len(idx) == 1 {
		return IndexAnswer(idx[0])
	}
	return IndicesAnswer(idx...)
}

func (p *parser) continuation(line string) (string, step) {
	if p.open == nil {
		return "", stop
	}
	t := p.open.Text
	switch {
	case t == "":
		p.open.Text = line
	case t == line, strings.HasSuffix(t, "\n"+line), strings.HasSuffix(t, " "+line):
	default:
		p.open.Text = t + "\n" + line
	}
	return "", stop
}

func splitWords(s string) []string {
	parts := strings.Split(s, "/")
	out := make([]string, 0, len(parts))
	for _, w := range parts {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
