package exam

import (
	"encoding/json"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
)

// Question is the typed, scoreable view of one imported question. Options
// and the answer key are stored as the strings the scorer compares against.
type Question struct {
	ID              string          `json:"id"`
	TestID          string          `json:"test_id"`
	Position        int             `json:"position"` // sequence_id of the source item
	Content         string          `json:"content"`
	Type            string          `json:"type"`
	DifficultyLevel cefr.Level      `json:"difficulty_level"`
	ScoreWeight     float64         `json:"score_weight"`
	OptionsJSON     json.RawMessage `json:"options_json,omitempty"`
	CorrectKey      string          `json:"correct_key,omitempty"`
}

// Options decodes OptionsJSON. A question without options returns nil.
func (q Question) Options() []string {
	if len(q.OptionsJSON) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(q.OptionsJSON, &out); err != nil {
		return nil
	}
	return out
}

// Test is the aggregate persisted by an import. QuestionsData keeps the full
// ordered item list (instructions included) for rendering; Questions holds
// only the scoreable items and is owned by the test.
type Test struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Duration      int             `json:"duration"` // minutes
	AudioURL      string          `json:"audio_url,omitempty"`
	QuestionsData json.RawMessage `json:"questions_data"`
	Questions     []Question      `json:"questions"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// MaxScore is the weighted score of a fully correct submission.
func (t Test) MaxScore() float64 {
	var sum float64
	for _, q := range t.Questions {
		sum += q.ScoreWeight
	}
	return sum
}

type TestSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Duration      int    `json:"duration"`
	QuestionCount int    `json:"question_count"`
	CreatedAt     int64  `json:"created_at"`
}

// Result is one graded submission.
type Result struct {
	ID            string         `json:"id"`
	TestID        string         `json:"test_id"`
	UserID        string         `json:"user_id"`
	Score         float64        `json:"score"`
	MaxScore      float64        `json:"total_weighted_score"`
	Percentage    float64        `json:"percentage"`
	DetectedLevel cefr.Level     `json:"detected_level"`
	Correct       int            `json:"correct_count"`
	UserAnswers   map[string]any `json:"user_answers"`
	Feedback      string         `json:"admin_feedback,omitempty"`
	Reviewed      bool           `json:"is_reviewed"`
	CreatedAt     int64          `json:"created_at"`
}
