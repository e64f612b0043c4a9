package http

import (
	"database/sql"
	"net/http"
)

type dashboardStats struct {
	Users         int64   `json:"total_users"`
	Tests         int64   `json:"total_tests"`
	Questions     int64   `json:"total_questions"`
	Results       int64   `json:"total_results"`
	Reviewed      int64   `json:"reviewed_results"`
	AvgPercentage float64 `json:"average_percentage"`
}

// GET /admin/stats
func StatsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s dashboardStats
		err := db.QueryRowContext(r.Context(), `SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM tests),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM results),
			(SELECT COUNT(*) FROM results WHERE is_reviewed = $1),
			(SELECT COALESCE(AVG(percentage), 0) FROM results)`, true).
			Scan(&s.Users, &s.Tests, &s.Questions, &s.Results, &s.Reviewed, &s.AvgPercentage)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, s)
	}
}
