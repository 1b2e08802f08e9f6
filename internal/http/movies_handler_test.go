package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/movies"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/storage"
)

// fakeCatalog returns a fixed result or error.
type fakeCatalog struct {
	results []domain.Movie
	err     error
}

func (f *fakeCatalog) Search(ctx context.Context, q catalog.Query) ([]domain.Movie, error) {
	if f.err != nil {
		return []domain.Movie{}, f.err
	}
	return domain.CloneList(f.results), nil
}

type testServer struct {
	*Server
	catalog *fakeCatalog
	repo    *repository.MoviesRepository
}

func buildTestServer(tb testing.TB, token string, seed ...domain.Movie) *testServer {
	tb.Helper()
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)

	kv := storage.New(ctx, storage.NewMemoryBackend(), logger)
	repo := repository.New(kv).Movies
	if len(seed) > 0 {
		if err := repo.Save(ctx, seed); err != nil {
			tb.Fatalf("seed: %v", err)
		}
	}
	fake := &fakeCatalog{}
	st := movies.New(ctx, repo, fake, movies.Options{Logger: logger})

	cfg := config.Config{Port: "0", AuthToken: token}
	srv := New(cfg, st, kv, logger)
	// Replace chi router to avoid default middleware noise.
	srv.router = chi.NewRouter()
	srv.registerRoutes()
	return &testServer{Server: srv, catalog: fake, repo: repo}
}

type validationBody struct {
	Code    string              `json:"code"`
	Details []domain.FieldError `json:"details"`
}

type conflictBody struct {
	Code    string               `json:"code"`
	Details []domain.FieldChange `json:"details"`
}

func seedMovie(id, title string) domain.Movie {
	release := domain.NewDate(2021, time.October, 22)
	runtime := 155
	return domain.Movie{
		ID:             id,
		PrimaryTitle:   title,
		OriginalTitle:  title,
		Type:           "movie",
		ReleaseDate:    &release,
		RuntimeMinutes: &runtime,
		Genres:         []string{"Sci-Fi"},
	}
}

func do(srv *testServer, method, target, token string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(payload)
}

func TestHealthz(t *testing.T) {
	srv := buildTestServer(t, "")
	rec := do(srv, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	srv.kv = storage.New(context.Background(), nil, log.New(io.Discard, "", 0))
	rec = do(srv, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without storage", rec.Code)
	}
	if got := decodeBody[healthResponse](t, rec); got.Status != "degraded" {
		t.Fatalf("status body = %q, want degraded", got.Status)
	}
}

func TestHandleListAndGetMovie(t *testing.T) {
	srv := buildTestServer(t, "", seedMovie("m1", "Dune"), seedMovie("m2", "Arrival"))

	rec := do(srv, http.MethodGet, "/movies", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody[movieListResponse](t, rec)
	if len(list.Items) != 2 || list.Items[0].ID != "m1" {
		t.Fatalf("items = %+v", list.Items)
	}

	rec = do(srv, http.MethodGet, "/movies/m2", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if got := decodeBody[movieResponse](t, rec); got.Movie.PrimaryTitle != "Arrival" {
		t.Fatalf("movie = %+v", got.Movie)
	}

	rec = do(srv, http.MethodGet, "/movies/missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rec.Code)
	}
}

func TestHandleCreateMovie_AuthValidation(t *testing.T) {
	srv := buildTestServer(t, "secret")
	body := mustJSON(t, seedMovie("", "Dune"))

	rec := do(srv, http.MethodPost, "/movies", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	rec = do(srv, http.MethodPost, "/movies", "wrong", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for wrong token", rec.Code)
	}
	if len(srv.store.Snapshot()) != 0 {
		t.Fatalf("unauthorized request must not mutate the list")
	}
}

func TestHandleCreateMovie_InvalidPayload(t *testing.T) {
	srv := buildTestServer(t, "secret")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid json", "invalid json", http.StatusUnprocessableEntity},
		{"empty body", "", http.StatusUnprocessableEntity},
		{"wrong type", `{"primaryTitle": 12}`, http.StatusUnprocessableEntity},
		{"bad date", `{"primaryTitle":"Dune","releaseDate":"22/10/2021","genres":["Sci-Fi"]}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"primaryTitle":"Dune","budget":1}`, http.StatusBadRequest},
		{"trailing data", `{"primaryTitle":"Dune"} {}`, http.StatusBadRequest},
		{"missing fields", `{"primaryTitle":"","genres":[]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodPost, "/movies", "secret", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
	if len(srv.store.Snapshot()) != 0 {
		t.Fatalf("invalid requests must not mutate the list")
	}
}

func TestHandleCreateMovie_ValidationDetails(t *testing.T) {
	srv := buildTestServer(t, "")

	rec := do(srv, http.MethodPost, "/movies", "", `{"primaryTitle":"D","runtimeMinutes":0}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	resp := decodeBody[validationBody](t, rec)
	if resp.Code != "VALIDATION_ERROR" {
		t.Fatalf("code = %s", resp.Code)
	}
	fields := map[string]bool{}
	for _, f := range resp.Details {
		fields[f.Field] = true
	}
	for _, want := range []string{"primaryTitle", "releaseDate", "runtimeMinutes", "genres"} {
		if !fields[want] {
			t.Fatalf("details missing %s: %+v", want, resp.Details)
		}
	}
}

func TestHandleCreateMovie_Success(t *testing.T) {
	srv := buildTestServer(t, "secret")

	candidate := seedMovie("client-chosen", "  Dune  ")
	rec := do(srv, http.MethodPost, "/movies", "secret", mustJSON(t, candidate))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[movieResponse](t, rec)
	if resp.Message != "Movie added" {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.Movie.ID == "" || resp.Movie.ID == "client-chosen" {
		t.Fatalf("id = %q, want a store generated id", resp.Movie.ID)
	}
	if resp.Movie.PrimaryTitle != "Dune" {
		t.Fatalf("title = %q, want trimmed", resp.Movie.PrimaryTitle)
	}
	if loc := rec.Header().Get("Location"); loc != "/movies/"+resp.Movie.ID {
		t.Fatalf("Location = %s", loc)
	}

	persisted, err := srv.repo.Load(context.Background())
	if err != nil || len(persisted) != 1 || persisted[0].ID != resp.Movie.ID {
		t.Fatalf("persisted = %+v, %v", persisted, err)
	}
}

func TestHandleCreateMovie_OpenWhenNoToken(t *testing.T) {
	srv := buildTestServer(t, "")
	rec := do(srv, http.MethodPost, "/movies", "", mustJSON(t, seedMovie("", "Dune")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestHandleUpdateMovie_ConfirmationFlow(t *testing.T) {
	original := seedMovie("m1", "Dune")
	srv := buildTestServer(t, "secret", original)

	rec := do(srv, http.MethodPut, "/movies/m1", "secret", mustJSON(t, original))
	if rec.Code != http.StatusOK {
		t.Fatalf("unchanged status = %d, want 200", rec.Code)
	}
	if got := decodeBody[unchangedResponse](t, rec); got.Changed {
		t.Fatalf("changed = true for identical record")
	}

	edited := original.Clone()
	edited.PrimaryTitle = "Dune: Part One"
	edited.Genres = []string{"Sci-Fi", "Drama"}

	rec = do(srv, http.MethodPut, "/movies/m1", "secret", mustJSON(t, edited))
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed status = %d, want 409", rec.Code)
	}
	conflict := decodeBody[conflictBody](t, rec)
	if conflict.Code != "CONFIRMATION_REQUIRED" || len(conflict.Details) != 2 {
		t.Fatalf("conflict = %+v", conflict)
	}
	if current, _ := srv.store.Get("m1"); current.PrimaryTitle != "Dune" {
		t.Fatalf("unconfirmed update mutated the store: %+v", current)
	}

	rec = do(srv, http.MethodPut, "/movies/m1?confirm=true", "secret", mustJSON(t, edited))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[movieResponse](t, rec)
	if resp.Changed == nil || !*resp.Changed || resp.Message != "Movie updated" {
		t.Fatalf("response = %+v", resp)
	}
	if current, _ := srv.store.Get("m1"); current.PrimaryTitle != "Dune: Part One" {
		t.Fatalf("store not updated: %+v", current)
	}
}

func TestHandleUpdateMovie_Errors(t *testing.T) {
	srv := buildTestServer(t, "secret", seedMovie("m1", "Dune"))

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{"unknown id", "/movies/missing?confirm=true", mustJSON(t, seedMovie("", "Ghost")), http.StatusNotFound},
		{"id mismatch", "/movies/m1", mustJSON(t, seedMovie("m2", "Dune")), http.StatusUnprocessableEntity},
		{"invalid record", "/movies/m1?confirm=true", `{"primaryTitle":"Dune","genres":[]}`, http.StatusUnprocessableEntity},
		{"bad confirm", "/movies/m1?confirm=perhaps", mustJSON(t, seedMovie("", "Dune")), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodPut, tt.target, "secret", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleDeleteMovie(t *testing.T) {
	srv := buildTestServer(t, "secret", seedMovie("m1", "Dune"))

	rec := do(srv, http.MethodDelete, "/movies/m1", "secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody[deleteResponse](t, rec); got.Message != `"Dune" deleted` {
		t.Fatalf("message = %q", got.Message)
	}

	rec = do(srv, http.MethodDelete, "/movies/m1", "secret", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandleRefresh(t *testing.T) {
	srv := buildTestServer(t, "secret", seedMovie("local", "Local"))
	srv.catalog.results = []domain.Movie{seedMovie("tt1", "Heat"), seedMovie("tt2", "Ran")}

	rec := do(srv, http.MethodPost, "/movies/refresh", "secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody[movieListResponse](t, rec); len(got.Items) != 2 || got.Items[0].ID != "tt1" {
		t.Fatalf("items = %+v", got.Items)
	}

	srv.catalog.err = errors.New("upstream down")
	rec = do(srv, http.MethodPost, "/movies/refresh", "secret", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	got := decodeBody[errorResponse](t, rec)
	if got.Code != "UPSTREAM_ERROR" || got.Message != "Failed to load movies" {
		t.Fatalf("error = %+v", got)
	}
	if len(srv.store.Snapshot()) != 2 {
		t.Fatalf("failed refresh must keep the cached list")
	}
}

func TestHandleCreateMovie_BodyLimit(t *testing.T) {
	srv := buildTestServer(t, "")
	huge := `{"primaryTitle":"` + strings.Repeat("a", maxRequestBody) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/movies", bytes.NewBufferString(huge))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}
