package exam

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/russianmaster/russianmaster-lms/internal/cefr"
	"github.com/russianmaster/russianmaster-lms/internal/grading"
)

// Scorer turns a submission into a weighted Result. Every question counts
// toward the maximum; unanswered questions earn nothing.
type Scorer struct {
	grader grading.Grader
}

func NewScorer(g grading.Grader) *Scorer {
	if g == nil {
		g = grading.NewDefaultGrader()
	}
	return &Scorer{grader: g}
}

// Score grades answers (keyed by question ID) against t, which must carry
// answer keys (see Store.GetTestAdmin).
func (s *Scorer) Score(ctx context.Context, t Test, userID string, answers map[string]any) Result {
	res := Result{
		ID:          uuid.NewString(),
		TestID:      t.ID,
		UserID:      userID,
		UserAnswers: answers,
	}
	if res.UserAnswers == nil {
		res.UserAnswers = map[string]any{}
	}
	for _, q := range t.Questions {
		res.MaxScore += q.ScoreWeight
		resp, ok := answers[q.ID]
		if !ok || resp == nil {
			continue
		}
		g, err := s.grader.Grade(ctx, grading.Q{Type: q.Type, Points: q.ScoreWeight, Key: q.CorrectKey}, resp)
		if err != nil {
			log.Printf("[submit] test=%s question=%s: %v", t.ID, q.ID, err)
			continue
		}
		res.Score += g.AutoPoints
		if g.Correct() {
			res.Correct++
		}
	}
	if res.MaxScore > 0 {
		res.Percentage = res.Score / res.MaxScore * 100
	}
	res.DetectedLevel = cefr.FromPercentage(res.Percentage)
	return res
}
