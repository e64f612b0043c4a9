package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/russianmaster/russianmaster-lms/internal/api/http"
	auth "github.com/russianmaster/russianmaster-lms/internal/auth/middleware"
	"github.com/russianmaster/russianmaster-lms/internal/cefr"
	"github.com/russianmaster/russianmaster-lms/internal/exam"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/extract"
	"github.com/russianmaster/russianmaster-lms/internal/rbac"
	"github.com/russianmaster/russianmaster-lms/internal/storage"
	syncx "github.com/russianmaster/russianmaster-lms/internal/sync"
)

const handlerDoc = `#EXAM_TITLE: Handler demo
[TYPE: QUIZ_SINGLE]
[LEVEL: B1]
Câu 1: Choose
A: Да
B: Нет | True
[TYPE: REWRITE]
[LEVEL: A2]
Câu 2: Перепишите
Org: Я читаю книгу
Key: Книга читается мной`

type memEvents struct {
	mu     sync.Mutex
	events []syncx.Event
}

func (m *memEvents) Append(_ context.Context, e syncx.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) Since(_ context.Context, after int64, _ int) ([]syncx.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []syncx.Event{}
	for _, e := range m.events {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	srv    *httptest.Server
	store  exam.Store
	events *memEvents
}

// asCaller stands in for JWTMiddleware: X-Role, X-Sub and X-User become the caller.
func asCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithSubject(r.Context(), r.Header.Get("X-Sub"))
		ctx = auth.WithUsername(ctx, r.Header.Get("X-User"))
		ctx = rbac.WithRole(ctx, r.Header.Get("X-Role"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newEnv(t *testing.T, requireAudio bool) *env {
	t.Helper()
	store := exam.NewInMemoryStore()
	events := &memEvents{}
	srv := httptest.NewUnstartedServer(nil)
	bs, err := storage.NewFSStore(t.TempDir(), "http://"+srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	im := &examdoc.Importer{
		Extractor:    extract.New("", 0),
		Store:        store,
		Blobs:        bs,
		Events:       events,
		RequireAudio: requireAudio,
	}

	r := chi.NewRouter()
	r.Route("/assets", func(ar chi.Router) { api.MountAssets(ar, bs) })
	r.Group(func(pr chi.Router) {
		pr.Use(asCaller)
		pr.With(rbac.Require(rbac.PermTestView)).Get("/tests", api.ListTestsHandler(store))
		pr.With(rbac.RequireAny(rbac.PermResultViewOwn, rbac.PermResultViewAll)).Get("/tests/history", api.HistoryHandler(store))
		pr.With(rbac.Require(rbac.PermTestView)).Get("/tests/{testID}", api.GetTestHandler(store))
		pr.With(rbac.Require(rbac.PermResultSubmit)).Post("/tests/submit", api.SubmitHandler(store, exam.NewScorer(nil), events))
		pr.With(rbac.Require(rbac.PermTestImport)).Post("/admin/tests/import", api.ImportTestHandler(im, 5, 5*time.Second))
		pr.With(rbac.Require(rbac.PermTestPreview)).Post("/admin/tests/preview", api.PreviewHandler(im, 5, 5*time.Second))
		pr.With(rbac.Require(rbac.PermTestDelete)).Delete("/admin/tests/{testID}", api.DeleteTestHandler(store, events))
		pr.With(rbac.Require(rbac.PermTestExport)).Get("/admin/tests/{testID}/export", api.ExportTestHandler(store))
		pr.With(rbac.Require(rbac.PermMediaUpload)).Post("/admin/media", api.MediaUploadHandler(bs, 5))
		pr.With(rbac.Require(rbac.PermResultViewAll)).Get("/admin/events", api.EventsHandler(events))
	})
	srv.Config.Handler = r
	srv.Start()
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: store, events: events}
}

type part struct {
	field, filename, body string
}

func multipartBody(t *testing.T, parts ...part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			_ = mw.WriteField(p.field, p.body)
			continue
		}
		fw, err := mw.CreateFormFile(p.field, p.filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(p.body))
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func (e *env) do(t *testing.T, method, path, role, sub string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Role", role)
	req.Header.Set("X-Sub", sub)
	res, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func (e *env) importDoc(t *testing.T, doc string, extra ...part) string {
	t.Helper()
	parts := append([]part{{"file", "exam.txt", doc}, {"title", "", "Fallback"}, {"duration", "", "30"}}, extra...)
	body, ct := multipartBody(t, parts...)
	res := e.do(t, http.MethodPost, "/admin/tests/import", auth.RoleAdmin, "admin", body, ct)
	if res.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(res.Body)
		t.Fatalf("import = %d %s", res.StatusCode, b)
	}
	out := decode[map[string]any](t, res)
	id, _ := out["test_id"].(string)
	if id == "" || out["title"] != "Handler demo" || out["questions"] != float64(2) {
		t.Fatalf("import response = %v", out)
	}
	return id
}

func TestImportThenStudentAndAdminViews(t *testing.T) {
	e := newEnv(t, false)
	id := e.importDoc(t, handlerDoc)

	res := e.do(t, http.MethodGet, "/tests/"+id, auth.RoleStudent, "u-1", nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("student get = %d", res.StatusCode)
	}
	raw, _ := io.ReadAll(res.Body)
	if strings.Contains(string(raw), `"correct_key"`) || strings.Contains(string(raw), `"correct"`) {
		t.Fatalf("student view leaks answers: %s", raw)
	}

	admin := decode[exam.Test](t, e.do(t, http.MethodGet, "/tests/"+id, auth.RoleAdmin, "admin", nil, ""))
	if len(admin.Questions) != 2 || admin.Questions[0].CorrectKey != "1" {
		t.Fatalf("admin questions = %+v", admin.Questions)
	}

	list := decode[[]exam.TestSummary](t, e.do(t, http.MethodGet, "/tests?q=handler", auth.RoleStudent, "u-1", nil, ""))
	if len(list) != 1 || list[0].QuestionCount != 2 {
		t.Fatalf("list = %+v", list)
	}
	if res := e.do(t, http.MethodGet, "/tests/missing", auth.RoleStudent, "u-1", nil, ""); res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing test = %d", res.StatusCode)
	}
}

func TestImportStatusMapping(t *testing.T) {
	e := newEnv(t, false)
	cases := []struct {
		name  string
		parts []part
		want  int
	}{
		{"empty document", []part{{"file", "a.txt", "\n \n"}, {"duration", "", "10"}}, http.StatusUnprocessableEntity},
		{"unsupported format", []part{{"file", "a.rtf", "x"}, {"duration", "", "10"}}, http.StatusBadRequest},
		{"missing duration", []part{{"file", "a.txt", handlerDoc}}, http.StatusBadRequest},
		{"missing file", []part{{"duration", "", "10"}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, tc.parts...)
			res := e.do(t, http.MethodPost, "/admin/tests/import", auth.RoleAdmin, "admin", body, ct)
			if res.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tc.want)
			}
		})
	}

	body, ct := multipartBody(t, part{"file", "a.txt", handlerDoc}, part{"duration", "", "10"})
	if res := e.do(t, http.MethodPost, "/admin/tests/import", auth.RoleStudent, "u-1", body, ct); res.StatusCode != http.StatusForbidden {
		t.Fatalf("student import = %d", res.StatusCode)
	}
}

func TestImportWithAudioServesAsset(t *testing.T) {
	e := newEnv(t, true)
	body, ct := multipartBody(t,
		part{"file", "exam.txt", handlerDoc},
		part{"duration", "", "20"},
		part{"audio", "listening.mp3", "ID3-audio"},
	)
	res := e.do(t, http.MethodPost, "/admin/tests/import", auth.RoleAdmin, "admin", body, ct)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("import = %d", res.StatusCode)
	}
	out := decode[map[string]any](t, res)
	url, _ := out["audio_url"].(string)
	if !strings.HasPrefix(url, e.srv.URL+"/assets/audio/") || !strings.HasSuffix(url, ".mp3") {
		t.Fatalf("audio_url = %q", url)
	}

	got, err := e.srv.Client().Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Body.Close()
	b, _ := io.ReadAll(got.Body)
	if got.StatusCode != http.StatusOK || string(b) != "ID3-audio" || got.Header.Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("asset = %d %q %q", got.StatusCode, b, got.Header.Get("Content-Type"))
	}

	missing, err := e.srv.Client().Get(e.srv.URL + "/assets/audio/nope.mp3")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing asset = %d", missing.StatusCode)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	e := newEnv(t, false)
	body, ct := multipartBody(t, part{"file", "exam.txt", handlerDoc})
	res := e.do(t, http.MethodPost, "/admin/tests/preview", auth.RoleAdmin, "admin", body, ct)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("preview = %d", res.StatusCode)
	}
	out := decode[struct {
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
		Items []map[string]any `json:"items"`
	}](t, res)
	if out.Metadata.Title != "Handler demo" || len(out.Items) != 2 {
		t.Fatalf("preview = %+v", out)
	}
	list, _ := e.store.ListTests(context.Background(), exam.ListOpts{})
	if len(list) != 0 {
		t.Fatalf("preview persisted %d tests", len(list))
	}
}

func TestSubmitAndHistory(t *testing.T) {
	e := newEnv(t, false)
	id := e.importDoc(t, handlerDoc)
	admin, _ := e.store.GetTestAdmin(context.Background(), id)

	answers := map[string]any{
		admin.Questions[0].ID: 1,
		admin.Questions[1].ID: "совсем другой ответ",
	}
	payload, _ := json.Marshal(map[string]any{"test_id": id, "answers": answers})
	res := e.do(t, http.MethodPost, "/tests/submit", auth.RoleStudent, "u-1", bytes.NewReader(payload), "application/json")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit = %d", res.StatusCode)
	}
	got := decode[exam.Result](t, res)
	if got.Score != 3 || got.MaxScore != 5 || got.Correct != 1 || got.DetectedLevel != cefr.B1 {
		t.Fatalf("result = %+v", got)
	}

	payload, _ = json.Marshal(map[string]any{"test_id": id, "answers": map[string]any{}})
	e.do(t, http.MethodPost, "/tests/submit", auth.RoleStudent, "u-2", bytes.NewReader(payload), "application/json")

	// a student asking for someone else's history still gets their own
	own := decode[[]exam.Result](t, e.do(t, http.MethodGet, "/tests/history?user_id=u-2", auth.RoleStudent, "u-1", nil, ""))
	if len(own) != 1 || own[0].UserID != "u-1" {
		t.Fatalf("own history = %+v", own)
	}
	all := decode[[]exam.Result](t, e.do(t, http.MethodGet, "/tests/history?test_id="+id, auth.RoleAdmin, "admin", nil, ""))
	if len(all) != 2 {
		t.Fatalf("admin history = %d results", len(all))
	}

	payload, _ = json.Marshal(map[string]any{"test_id": "missing"})
	if res := e.do(t, http.MethodPost, "/tests/submit", auth.RoleStudent, "u-1", bytes.NewReader(payload), "application/json"); res.StatusCode != http.StatusNotFound {
		t.Fatalf("submit missing = %d", res.StatusCode)
	}
}

func TestExportDeleteAndEvents(t *testing.T) {
	e := newEnv(t, false)
	id := e.importDoc(t, handlerDoc)

	res := e.do(t, http.MethodGet, "/admin/tests/"+id+"/export", auth.RoleAdmin, "admin", nil, "")
	b, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || !strings.HasPrefix(res.Header.Get("Content-Type"), "text/plain") {
		t.Fatalf("export = %d %q", res.StatusCode, res.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(b), "#EXAM_TITLE: Handler demo") || !strings.Contains(string(b), "Key: Книга читается мной") {
		t.Fatalf("export body:\n%s", b)
	}

	if res := e.do(t, http.MethodDelete, "/admin/tests/"+id, auth.RoleStudent, "u-1", nil, ""); res.StatusCode != http.StatusForbidden {
		t.Fatalf("student delete = %d", res.StatusCode)
	}
	if res := e.do(t, http.MethodDelete, "/admin/tests/"+id, auth.RoleAdmin, "admin", nil, ""); res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d", res.StatusCode)
	}
	if res := e.do(t, http.MethodDelete, "/admin/tests/"+id, auth.RoleAdmin, "admin", nil, ""); res.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete = %d", res.StatusCode)
	}

	want := []string{syncx.TypeTestImported, syncx.TypeTestDeleted}
	if got := e.events.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v", got)
	}
	evs := decode[[]syncx.Event](t, e.do(t, http.MethodGet, "/admin/events?after=1", auth.RoleAdmin, "admin", nil, ""))
	if len(evs) != 1 || evs[0].Key != id {
		t.Fatalf("events after 1 = %+v", evs)
	}
}

func TestMediaUpload(t *testing.T) {
	e := newEnv(t, false)
	body, ct := multipartBody(t, part{"file", "Picture.PNG", "png-bytes"})
	res := e.do(t, http.MethodPost, "/admin/media", auth.RoleAdmin, "admin", body, ct)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload = %d", res.StatusCode)
	}
	out := decode[map[string]string](t, res)
	if !strings.HasPrefix(out["url"], e.srv.URL+"/assets/media/") || !strings.HasSuffix(out["url"], ".png") {
		t.Fatalf("url = %q", out["url"])
	}
}
