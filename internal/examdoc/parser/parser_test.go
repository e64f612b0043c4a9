package parser

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
)

func mustParse(t *testing.T, doc string) Result {
	t.Helper()
	res, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

func TestParseSingleChoiceDocument(t *testing.T) {
	doc := `#EXAM_TITLE: Demo
[TYPE: QUIZ_SINGLE]
[LEVEL: B1]
Câu 1: Choose the correct word
A: Да
B: Нет | True
C: Может быть`

	res := mustParse(t, doc)
	if res.Meta.Title != "Demo" {
		t.Fatalf("title = %q", res.Meta.Title)
	}
	if len(res.Items) != 1 {
		t.Fatalf("items = %d, want 1: %+v", len(res.Items), res.Items)
	}
	q := res.Items[0]
	if q.Kind != KindQuizSingle || q.Level != cefr.B1 {
		t.Fatalf("kind/level = %s/%s", q.Kind, q.Level)
	}
	if q.Text != "Choose the correct word" {
		t.Fatalf("text = %q", q.Text)
	}
	if want := []string{"Да", "Нет", "Может быть"}; !reflect.DeepEqual(q.Options, want) {
		t.Fatalf("options = %q, want %q", q.Options, want)
	}
	if i, ok := q.Correct.Index(); !ok || i != 1 {
		t.Fatalf("correct = %v", q.Correct)
	}
}

func TestParseFillBlank(t *testing.T) {
	res := mustParse(t, "[TYPE: FILL_BLANK]\nЯ {читаю} книгу.")
	q := res.Items[0]
	if q.Kind != KindFillBlank {
		t.Fatalf("kind = %s", q.Kind)
	}
	if q.TextProcessed != "Я ___ книгу." {
		t.Fatalf("text_processed = %q", q.TextProcessed)
	}
	if !reflect.DeepEqual(q.CorrectBlanks, []string{"читаю"}) {
		t.Fatalf("blanks = %q", q.CorrectBlanks)
	}
	if q.Correct != nil {
		t.Fatalf("fill blank without key should not default a correct index, got %v", q.Correct)
	}
}

func TestFillBlankCountsMatch(t *testing.T) {
	doc := `[TYPE: FILL_BLANK]
{Q1} Он {пишет} письмо, а она {читает} {книгу}.
{Q2} Мы {идём} домой.`
	res := mustParse(t, doc)
	if len(res.Items) != 2 {
		t.Fatalf("items = %d", len(res.Items))
	}
	for _, q := range res.Items {
		k := strings.Count(q.Text, "{")
		if len(q.CorrectBlanks) != k {
			t.Errorf("%q: blanks %d, spans %d", q.Text, len(q.CorrectBlanks), k)
		}
		if got := strings.Count(q.TextProcessed, BlankPlaceholder); got != k {
			t.Errorf("%q: placeholders %d, spans %d", q.TextProcessed, got, k)
		}
	}
	if want := []string{"пишет", "читает", "книгу"}; !reflect.DeepEqual(res.Items[0].CorrectBlanks, want) {
		t.Fatalf("blanks = %q, want %q", res.Items[0].CorrectBlanks, want)
	}
}

func TestFillBlankContinuationJoinsOpenQuestion(t *testing.T) {
	res := mustParse(t, "[TYPE: FILL_BLANK]\nЯ {читаю} книгу.\nОн {пишет} письмо.")
	if len(res.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(res.Items))
	}
	if len(res.Items[0].CorrectBlanks) != 2 {
		t.Fatalf("blanks = %q", res.Items[0].CorrectBlanks)
	}
}

func TestMultipleTrueFlagsDeriveMulti(t *testing.T) {
	doc := `[TYPE: READING]
1. Which are verbs?
A. читать | True
B. стол
C) писать | TRUE
D: окно`
	q := mustParse(t, doc).Items[0]
	if q.Kind != KindQuizMulti {
		t.Fatalf("kind = %s, want QUIZ_MULTI", q.Kind)
	}
	idx, ok := q.Correct.Indices()
	if !ok || !reflect.DeepEqual(idx, []int{0, 2}) {
		t.Fatalf("correct = %v", q.Correct)
	}
	if q.Options[2] != "писать" {
		t.Fatalf("marker not stripped: %q", q.Options[2])
	}
}

func TestChoiceDefaultsToFirstOption(t *testing.T) {
	q := mustParse(t, "Question 3: Pick one\nA. x\nB. y").Items[0]
	if i, ok := q.Correct.Index(); !ok || i != 0 {
		t.Fatalf("correct = %v", q.Correct)
	}
}

func TestKeyLine(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		kind Kind
		key  string
	}{
		{"letter", "Câu 1: q\nA. a\nB. b\nĐáp án: B", KindQuizSingle, "1"},
		{"letters", "Câu 1: q\nA. a\nB. b\nC. c\nKey: A, C", KindQuizMulti, "0,2"},
		{"flags win", "Câu 1: q\nA. a | True\nB. b\nAnswer: B", KindQuizSingle, "0"},
		{"letters key then one flag", "Câu 1: q\nA. a | True\nB. b\nC. c\nKey: A, C", KindQuizSingle, "0"},
		{"letters key on reading", "[TYPE: READING]\nCâu 1: q\nA. a\nB. b\nC. c\nKey: B, C", KindQuizMulti, "1,2"},
		{"text", "[TYPE: REWRITE]\nCâu 1: Перепишите\nKey: Новый текст", KindRewrite, "Новый текст"},
		{"letter on text kind", "[TYPE: ERROR_CHECK]\nCâu 1: Find it\nKey: B", KindErrorCheck, "B"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := mustParse(t, c.doc).Items[0]
			if q.Kind != c.kind {
				t.Fatalf("kind = %s, want %s", q.Kind, c.kind)
			}
			if got := q.Correct.String(); got != c.key {
				t.Fatalf("key = %q, want %q", got, c.key)
			}
		})
	}
}

func TestKeyWithoutOpenQuestionIsIgnored(t *testing.T) {
	res := mustParse(t, "Key: A\nPart 1")
	if len(res.Items) != 1 || !res.Items[0].IsInstruction() {
		t.Fatalf("items = %+v", res.Items)
	}
}

func TestTypeRemainderOpensRewriteWithOrg(t *testing.T) {
	res := mustParse(t, "[TYPE: REWRITE] Org: Старый текст")
	if len(res.Items) != 1 {
		t.Fatalf("items = %d", len(res.Items))
	}
	q := res.Items[0]
	if q.Kind != KindRewrite || q.OriginalSentence != "Старый текст" {
		t.Fatalf("got %+v", q)
	}
}

func TestArrangeWords(t *testing.T) {
	doc := "[TYPE: ARRANGE]\nCâu 1: Составьте предложение\nWords: я / люблю /  / Москву\nKey: я люблю Москву"
	q := mustParse(t, doc).Items[0]
	if !reflect.DeepEqual(q.Words, []string{"я", "люблю", "Москву"}) {
		t.Fatalf("words = %q", q.Words)
	}
	if s, ok := q.Correct.Text(); !ok || s != "я люблю Москву" {
		t.Fatalf("correct = %v", q.Correct)
	}
}

func TestCombinedDirectiveLine(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"type then src", "[TYPE: LISTENING][SRC: https://cdn.example/a.mp3]Câu 1: Что вы слышали?\nA. да\nB. нет"},
		{"src then type", "[SRC: https://cdn.example/a.mp3] [TYPE: LISTENING] Câu 1: Что вы слышали?\nA. да\nB. нет"},
		{"with level", "[LEVEL: C1][TYPE: LISTENING][SRC: https://cdn.example/a.mp3]Câu 1: Что вы слышали?\nA. да\nB. нет"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := mustParse(t, c.doc)
			if len(res.Items) != 1 {
				t.Fatalf("items = %+v", res.Items)
			}
			q := res.Items[0]
			if q.Kind != KindListening {
				t.Fatalf("kind = %s", q.Kind)
			}
			if q.MediaSrc != "https://cdn.example/a.mp3" {
				t.Fatalf("media = %q", q.MediaSrc)
			}
			if q.Text != "Что вы слышали?" {
				t.Fatalf("text = %q", q.Text)
			}
			if len(q.Options) != 2 {
				t.Fatalf("options = %q", q.Options)
			}
		})
	}
}

func TestMediaPersistsAcrossQuestions(t *testing.T) {
	doc := `[TYPE: LISTENING]
[SRC: https://cdn.example/1.mp3]
Câu 1: one
Câu 2: two
[SRC: https://cdn.example/2.mp3]
Câu 3: three`
	res := mustParse(t, doc)
	want := []string{"https://cdn.example/1.mp3", "https://cdn.example/1.mp3", "https://cdn.example/2.mp3"}
	for i, q := range res.Items {
		if q.MediaSrc != want[i] {
			t.Errorf("item %d media = %q, want %q", i, q.MediaSrc, want[i])
		}
	}
}

func TestInstructionTypeTagEmitsInstruction(t *testing.T) {
	doc := `[TYPE: INSTRUCTION] Part 1: Reading
Đọc kỹ đoạn văn sau
[TYPE: QUIZ_SINGLE]
Câu 1: q`
	res := mustParse(t, doc)
	if len(res.Items) != 3 {
		t.Fatalf("items = %+v", res.Items)
	}
	if !res.Items[0].IsInstruction() || res.Items[0].Text != "Part 1: Reading" {
		t.Fatalf("first = %+v", res.Items[0])
	}
	if !res.Items[1].IsInstruction() {
		t.Fatalf("instruction mode should emit plain lines as instructions: %+v", res.Items[1])
	}
	if res.Items[2].Kind != KindQuizSingle {
		t.Fatalf("third = %+v", res.Items[2])
	}
}

func TestQuestionStartWinsOverInstructionPrefix(t *testing.T) {
	res := mustParse(t, "1. Read the following text and answer\nA. yes\nB. no")
	if len(res.Items) != 1 || res.Items[0].IsInstruction() {
		t.Fatalf("items = %+v", res.Items)
	}
	if res.Items[0].Text != "Read the following text and answer" {
		t.Fatalf("text = %q", res.Items[0].Text)
	}
}

func TestInstructionFlushesOpenQuestion(t *testing.T) {
	doc := `Câu 1: first
A. a
Bài 2: Grammar
Câu 2: second`
	res := mustParse(t, doc)
	kinds := []Kind{}
	for _, it := range res.Items {
		kinds = append(kinds, it.Kind)
	}
	want := []Kind{KindQuizSingle, KindInstruction, KindQuizSingle}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	if res.Items[1].Text != "Bài 2: Grammar" {
		t.Fatalf("instruction text = %q", res.Items[1].Text)
	}
}

func TestPassageBlock(t *testing.T) {
	doc := `[TYPE: READING]
[PASSAGE]
Москва — столица России.
Câu 1: this line is passage text
[SRC: not-a-tag-here]

Второй абзац.
[/PASSAGE]
Câu 1: Что является столицей?
A. Москва | True
B. Казань
Câu 2: Второй вопрос
[TYPE: READING]
Câu 3: after reset`
	res := mustParse(t, doc)
	if len(res.Items) != 3 {
		t.Fatalf("items = %+v", res.Items)
	}
	want := "Москва — столица России.\nCâu 1: this line is passage text\n[SRC: not-a-tag-here]\n\nВторой абзац."
	if res.Items[0].Passage != want {
		t.Fatalf("passage = %q", res.Items[0].Passage)
	}
	if res.Items[1].Passage != want {
		t.Fatalf("second question should share the passage, got %q", res.Items[1].Passage)
	}
	if res.Items[0].MediaSrc != "" {
		t.Fatalf("tags inside a passage must not apply, media = %q", res.Items[0].MediaSrc)
	}
	if res.Items[2].Passage != "" {
		t.Fatalf("type tag should reset the passage, got %q", res.Items[2].Passage)
	}
}

func TestOneLinePassage(t *testing.T) {
	res := mustParse(t, "[PASSAGE] Короткий текст [/PASSAGE] Câu 1: q")
	if len(res.Items) != 1 {
		t.Fatalf("items = %+v", res.Items)
	}
	if res.Items[0].Passage != "Короткий текст" || res.Items[0].Text != "q" {
		t.Fatalf("got %+v", res.Items[0])
	}
}

func TestContinuationLines(t *testing.T) {
	doc := `Câu 1: Первая строка
вторая строка
вторая строка
A. a`
	q := mustParse(t, doc).Items[0]
	if q.Text != "Первая строка\nвторая строка" {
		t.Fatalf("text = %q", q.Text)
	}
}

func TestUnknownTagsDegrade(t *testing.T) {
	res := mustParse(t, "[TYPE: ESSAY]\n[LEVEL: Z9]\nCâu 1: q\n[TYPE: QUIZ_MULTI]\nCâu 2: q2")
	for _, q := range res.Items {
		if q.Kind != KindQuizSingle || q.Level != cefr.A1 {
			t.Fatalf("got %s/%s", q.Kind, q.Level)
		}
	}
}

func TestSequenceIDsStrictlyIncrease(t *testing.T) {
	doc := `Part 1
Câu 1: a
Task 2
Câu 2: b
Câu 3: c
Exercise 3`
	res := mustParse(t, doc)
	if len(res.Items) != 6 {
		t.Fatalf("items = %d", len(res.Items))
	}
	for i, it := range res.Items {
		if it.SequenceID != i+1 {
			t.Fatalf("item %d has sequence_id %d", i, it.SequenceID)
		}
	}
}

func TestParseIsDeterministic(t *testing.T) {
	doc := "#EXAM_TITLE: T\n#EXAM_AUDIO: https://cdn.example/full.mp3\n[TYPE: FILL_BLANK]\nЯ {читаю}.\n[TYPE: READING]\nCâu 1: q\nA. x | True\nB. y | True"
	a, _ := json.Marshal(mustParse(t, doc))
	b, _ := json.Marshal(mustParse(t, doc))
	if string(a) != string(b) {
		t.Fatalf("non-deterministic output:\n%s\n%s", a, b)
	}
	if !strings.Contains(string(a), `"audio":"https://cdn.example/full.mp3"`) {
		t.Fatalf("audio metadata missing: %s", a)
	}
}

func TestDecomposedDiacriticsAreNormalized(t *testing.T) {
	// "Câu" written with a combining circumflex, as some exporters produce.
	doc := "Ca\u0302u 1: q\nA. x"
	res := mustParse(t, doc)
	if len(res.Items) != 1 || res.Items[0].Text != "q" {
		t.Fatalf("items = %+v", res.Items)
	}
}

func TestNoContent(t *testing.T) {
	for _, doc := range []string{"", "   \n\n", "#EXAM_TITLE: Only a title\n[TYPE: READING]\n[LEVEL: B2]", "stray text with nothing open"} {
		res, err := Parse(doc)
		if !errors.Is(err, ErrNoContent) {
			t.Fatalf("Parse(%q) err = %v, want ErrNoContent", doc, err)
		}
		if len(res.Items) != 0 {
			t.Fatalf("Parse(%q) items = %+v", doc, res.Items)
		}
	}
}

func TestLoneInstructionIsContent(t *testing.T) {
	res, err := Parse("Part 1: Listening")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(res.Items) != 1 || !res.Items[0].IsInstruction() {
		t.Fatalf("items = %+v", res.Items)
	}
}

func TestRuleOrder(t *testing.T) {
	want := []string{"passage-body", "title", "media", "level", "type", "passage", "instruction", "question", "option", "answer", "continuation"}
	got := make([]string, len(rules))
	for i, r := range rules {
		got[i] = r.name
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rule order = %v", got)
	}
}

func TestItemJSONShape(t *testing.T) {
	res := mustParse(t, "[LEVEL: B2]\nCâu 1: q\nA. x\nB. y | True\nPart 2")
	b, err := json.Marshal(res.Items)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"sequence_id":1,"kind":"QUIZ_SINGLE","level":"B2","text":"q","options":["x","y"],"correct":1},{"sequence_id":2,"kind":"INSTRUCTION","text":"Part 2"}]`
	if string(b) != want {
		t.Fatalf("json =\n%s\nwant\n%s", b, want)
	}
}
