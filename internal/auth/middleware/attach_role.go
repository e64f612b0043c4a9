package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/russianmaster/russianmaster-lms/internal/rbac"
)

// AttachRoleFromDB replaces the token role with the role stored in users.
// Subjects missing from users keep an admin claim (the configured admin is
// not stored there); other claims survive only when trustClaims is set.
func AttachRoleFromDB(db *sql.DB, trustClaims bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claimRole := rbac.RoleFromContext(ctx)

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, SubjectFromContext(ctx)).Scan(&role)
			switch {
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, sql.ErrNoRows) && claimRole == RoleAdmin:
				next.ServeHTTP(w, r)
			case trustClaims && claimRole != "":
				next.ServeHTTP(w, r)
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
