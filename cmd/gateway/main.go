package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/russianmaster/russianmaster-lms/internal/api/http"
	auth "github.com/russianmaster/russianmaster-lms/internal/auth/middleware"
	"github.com/russianmaster/russianmaster-lms/internal/config"
	"github.com/russianmaster/russianmaster-lms/internal/db"
	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/extract"
	"github.com/russianmaster/russianmaster-lms/internal/rbac"
	"github.com/russianmaster/russianmaster-lms/internal/storage"
	syncx "github.com/russianmaster/russianmaster-lms/internal/sync"
)

func main() {
	cfg := config.Load()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.NewEventRepo(dbh, cfg.SiteID)

	bs, err := openBlobStore(cfg)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	importer := &examdoc.Importer{
		Extractor:    extract.New(cfg.PDFToTextBin, cfg.ImportTimeout),
		Store:        store,
		Blobs:        bs,
		Events:       events,
		RequireAudio: cfg.ImportRequireAudio,
	}
	scorer := exam.NewScorer(nil)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	admin := auth.LocalAdmin{Username: cfg.AdminUser, PassHash: cfg.AdminPassHash}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.ImportTimeout + 30*time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, admin))
		r.Post("/auth/register", auth.RegisterHandler(authSvc, dbh, admin))
	}

	// public: media URLs end up in <audio> and <img> tags
	if cfg.BlobDriver == "fs" {
		r.Route("/assets", func(ar chi.Router) { api.MountAssets(ar, bs) })
	}

	// Protected API (JWT → role from users → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		pr.With(rbac.Require(rbac.PermTestView)).
			Get("/tests", api.ListTestsHandler(store))
		pr.With(rbac.RequireAny(rbac.PermResultViewOwn, rbac.PermResultViewAll)).
			Get("/tests/history", api.HistoryHandler(store))
		pr.With(rbac.Require(rbac.PermTestView)).
			Get("/tests/{testID}", api.GetTestHandler(store))
		pr.With(rbac.Require(rbac.PermResultSubmit)).
			Post("/tests/submit", api.SubmitHandler(store, scorer, events))

		pr.Get("/auth/me", api.MeHandler(dbh))
		pr.With(rbac.Require(rbac.PermChangePassword)).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))

		pr.Route("/admin", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.PermTestImport)).
				Post("/tests/import", api.ImportTestHandler(importer, cfg.MaxUploadMB, cfg.ImportTimeout))
			ar.With(rbac.Require(rbac.PermTestPreview)).
				Post("/tests/preview", api.PreviewHandler(importer, cfg.MaxUploadMB, cfg.ImportTimeout))
			ar.With(rbac.Require(rbac.PermTestDelete)).
				Delete("/tests/{testID}", api.DeleteTestHandler(store, events))
			ar.With(rbac.Require(rbac.PermTestExport)).
				Get("/tests/{testID}/export", api.ExportTestHandler(store))
			ar.With(rbac.Require(rbac.PermMediaUpload)).
				Post("/media", api.MediaUploadHandler(bs, cfg.MaxUploadMB))
			ar.With(rbac.Require(rbac.PermResultViewAll)).
				Get("/events", api.EventsHandler(events))
			ar.With(rbac.Require(rbac.PermResultReview)).
				Post("/results/{resultID}/feedback", api.FeedbackHandler(store, events))
			ar.With(rbac.Require(rbac.PermUserList)).
				Get("/users", api.ListUsersHandler(dbh))
			ar.With(rbac.Require(rbac.PermResultViewAll)).
				Get("/users/{userID}/results", api.UserResultsHandler(store))
			ar.With(rbac.Require(rbac.PermStatsView)).
				Get("/stats", api.StatsHandler(dbh))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", readyz(dbh))

	log.Printf("listening on %s (mode=%s, db=%s, blobs=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.BlobDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func openBlobStore(cfg config.Config) (storage.BlobStore, error) {
	if cfg.BlobDriver == "supabase" {
		return storage.NewSupabaseStore(storage.SupabaseConfig{
			URL:    cfg.SupabaseURL,
			Key:    cfg.SupabaseKey,
			Bucket: cfg.SupabaseBucket,
		})
	}
	return storage.NewFSStore(cfg.BlobBasePath, cfg.PublicURL)
}

func readyz(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbh.PingContext(ctx); err != nil {
			http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
