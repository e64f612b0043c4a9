package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/russianmaster/russianmaster-lms/internal/auth/middleware"
	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/rbac"
	syncx "github.com/russianmaster/russianmaster-lms/internal/sync"
)

type submitReq struct {
	TestID  string         `json:"test_id"`
	Answers map[string]any `json:"answers"` // question id -> response
}

// POST /tests/submit
func SubmitHandler(store exam.Store, scorer *exam.Scorer, ev syncx.Appender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req submitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.TestID) == "" {
			http.Error(w, "test_id required", http.StatusBadRequest)
			return
		}
		t, err := store.GetTestAdmin(r.Context(), req.TestID)
		if err != nil {
			storeError(w, err)
			return
		}
		res := scorer.Score(r.Context(), t, userID, req.Answers)
		if err := store.SaveResult(r.Context(), res); err != nil {
			storeError(w, err)
			return
		}
		appendEvent(r.Context(), ev, syncx.TypeResultSubmitted, res.ID, map[string]any{
			"test_id":    res.TestID,
			"user_id":    res.UserID,
			"percentage": res.Percentage,
			"level":      res.DetectedLevel,
		})
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /tests/history?test_id=...&user_id=...&limit=50&offset=0
// Callers without result:view-all only ever see their own results.
func HistoryHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := strings.TrimSpace(q.Get("user_id"))
		if !rbac.Can(r.Context(), rbac.PermResultViewAll) {
			userID = auth.SubjectFromContext(r.Context())
			if userID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		list, err := store.ListResults(r.Context(), exam.ResultListOpts{
			TestID: strings.TrimSpace(q.Get("test_id")),
			UserID: userID,
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []exam.Result{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

type feedbackReq struct {
	Feedback string `json:"feedback"`
}

// POST /admin/results/{resultID}/feedback
func FeedbackHandler(store exam.Store, ev syncx.Appender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		fb := strings.TrimSpace(req.Feedback)
		if fb == "" {
			http.Error(w, "feedback required", http.StatusBadRequest)
			return
		}
		res, err := store.SetFeedback(r.Context(), chi.URLParam(r, "resultID"), fb)
		if err != nil {
			storeError(w, err)
			return
		}
		appendEvent(r.Context(), ev, syncx.TypeResultReviewed, res.ID, map[string]any{
			"test_id":  res.TestID,
			"user_id":  res.UserID,
			"reviewer": auth.SubjectFromContext(r.Context()),
		})
		respondJSON(w, http.StatusOK, res)
	}
}
