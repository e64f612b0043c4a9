package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/export"
	"github.com/russianmaster/russianmaster-lms/internal/rbac"
	syncx "github.com/russianmaster/russianmaster-lms/internal/sync"
)

// GET /tests?q=...&limit=50&offset=0
func ListTestsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListTests(r.Context(), exam.ListOpts{
			Q:      strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []exam.TestSummary{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /tests/{testID}. Answer keys are only returned to roles holding test:view-key.
func GetTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		get := store.GetTest
		if rbac.Can(r.Context(), rbac.PermTestViewKey) {
			get = store.GetTestAdmin
		}
		t, err := get(r.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, t)
	}
}

// DELETE /admin/tests/{testID}
func DeleteTestHandler(store exam.Store, ev syncx.Appender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		if err := store.DeleteTest(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		appendEvent(r.Context(), ev, syncx.TypeTestDeleted, id, map[string]string{"test_id": id})
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /admin/tests/{testID}/export renders the test back into the import format.
func ExportTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		t, err := store.GetTestAdmin(r.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		doc, err := export.FromTest(t)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.txt"`)
		_, _ = w.Write([]byte(doc))
	}
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, exam.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
