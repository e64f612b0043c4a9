package http

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/russianmaster/russianmaster-lms/internal/auth/middleware"
	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/rbac"
)

type userRow struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// GET /admin/users?role=student&q=mas&limit=50&offset=0
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var (
			where []string
			args  []any
		)
		if role := strings.TrimSpace(q.Get("role")); role != "" {
			args = append(args, role)
			where = append(where, fmt.Sprintf("role = $%d", len(args)))
		}
		if name := strings.TrimSpace(q.Get("q")); name != "" {
			args = append(args, "%"+strings.ToLower(name)+"%")
			where = append(where, fmt.Sprintf("LOWER(username) LIKE $%d", len(args)))
		}
		limit := parseIntDefault(q.Get("limit"), 50)
		if limit == 0 || limit > 200 {
			limit = 50
		}
		stmt := `SELECT id,username,role,created_at FROM users`
		if len(where) > 0 {
			stmt += " WHERE " + strings.Join(where, " AND ")
		}
		stmt += fmt.Sprintf(" ORDER BY username LIMIT %d OFFSET %d", limit, parseIntDefault(q.Get("offset"), 0))

		rows, err := db.QueryContext(r.Context(), stmt, args...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// GET /admin/users/{userID}/results?limit=50&offset=0
func UserResultsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := store.ListResults(r.Context(), exam.ResultListOpts{
			UserID: chi.URLParam(r, "userID"),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /auth/me
func MeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := auth.SubjectFromContext(ctx)
		if sub == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var u userRow
		err := db.QueryRowContext(ctx, `SELECT id,username,role,created_at FROM users WHERE id=$1`, sub).
			Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// the configured admin has no users row
			if rbac.RoleFromContext(ctx) != auth.RoleAdmin {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			u = userRow{ID: sub, Username: auth.UsernameFromContext(ctx), Role: auth.RoleAdmin}
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, u)
	}
}
