package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/screening/registry/internal/config"
	"github.com/screening/registry/internal/domain/admin"
	"github.com/screening/registry/internal/domain/center"
	"github.com/screening/registry/internal/domain/screening"
	"github.com/screening/registry/internal/platform/auth"
	"github.com/screening/registry/internal/platform/db"
)

// stubPatients satisfies PatientStore for routing tests; only Category is
// implemented, anything else panics.
type stubPatients struct {
	screening.PatientStore
	category screening.Category
}

func (s stubPatients) Category() screening.Category { return s.category }

type stubCenters struct {
	center.Repository
	centers []*center.Center
}

func (s stubCenters) List(context.Context) ([]*center.Center, error) { return s.centers, nil }

type stubUsers struct {
	admin.UserRepository
}

func (stubUsers) GetByUsername(context.Context, string) (*admin.User, error) {
	return nil, admin.ErrUserNotFound
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, env string) (*echo.Echo, *auth.TokenIssuer) {
	t.Helper()

	var patientStores []screening.PatientStore
	for _, c := range screening.Categories {
		patientStores = append(patientStores, stubPatients{category: c})
	}
	registry, err := screening.NewRegistry(patientStores...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	st := &stores{
		driver:   config.DriverPostgres,
		patients: registry,
		centers:  stubCenters{centers: []*center.Center{{Name: "PHC Ambala", Code: "48213"}}},
		users:    stubUsers{},
		pinger:   stubPinger{},
		close:    func() {},
	}
	cfg := &config.Config{
		Env:         env,
		CORSOrigins: []string{"*"},
		BcryptCost:  4,
		Timezone:    "UTC",
	}
	tokens := auth.NewTokenIssuer("main-test-secret", time.Hour)
	return newServer(cfg, zerolog.New(io.Discard), st, tokens), tokens
}

func serve(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	h, _ := newTestServer(t, "production")

	rec := serve(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"version":"`+version+`"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}

	rec = serve(h, http.MethodGet, "/health/db", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"driver":"postgres"`) {
		t.Errorf("unexpected db health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_APIRequiresToken(t *testing.T) {
	h, tokens := newTestServer(t, "production")

	for _, path := range []string{"/api/v1/patients", "/api/v1/centers", "/api/v1/patients/sickle-cell/count"} {
		if rec := serve(h, http.MethodGet, path, "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: expected 401, got %d", path, rec.Code)
		}
	}

	token, _, err := tokens.Issue("u-1", "priya01", "Priya Sharma")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec := serve(h, http.MethodGet, "/api/v1/centers", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "PHC Ambala") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestServer_DevModeSkipsAuth(t *testing.T) {
	h, _ := newTestServer(t, "development")

	if rec := serve(h, http.MethodGet, "/api/v1/centers", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200 in development, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/api/v1/centers", "", "not-a-token"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected a bad token to be rejected, got %d", rec.Code)
	}
}

func TestServer_LoginIsPublic(t *testing.T) {
	h, _ := newTestServer(t, "production")

	rec := serve(h, http.MethodPost, "/user/login", `{"userName":"ghost","password":"whatever1"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No user found! Please register") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestServer_UnknownCategory(t *testing.T) {
	h, _ := newTestServer(t, "development")

	rec := serve(h, http.MethodGet, "/api/v1/patients/lung-cancer", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestJWTSecret(t *testing.T) {
	logger := zerolog.New(io.Discard)

	if got := jwtSecret(&config.Config{JWTSecret: "configured"}, logger); got != "configured" {
		t.Errorf("expected configured secret, got %q", got)
	}
	if got := jwtSecret(&config.Config{}, logger); got != devJWTSecret {
		t.Errorf("expected development secret, got %q", got)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	applied := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "init", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "center_index", Applied: false},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and two rows, got %q", buf.String())
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2026-10-01 09:30:00") {
		t.Errorf("unexpected applied row: %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") {
		t.Errorf("unexpected pending row: %q", lines[3])
	}
}

func TestRetention(t *testing.T) {
	if got := retention(30); got != 720*time.Hour {
		t.Errorf("expected 720h, got %s", got)
	}
}

var (
	_ screening.Initializer = (*center.RepoMongo)(nil)
	_ screening.Initializer = (*admin.UserRepoMongo)(nil)
)

type recordingInitializer struct {
	name  string
	calls *[]string
	err   error
}

func (r recordingInitializer) Initialize(context.Context) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func TestStores_InitializeRunsInOrderAndStopsOnError(t *testing.T) {
	var calls []string
	st := &stores{initializers: []screening.Initializer{
		recordingInitializer{name: "breastcancers", calls: &calls},
		recordingInitializer{name: "centercodes", calls: &calls, err: errors.New("index build failed")},
		recordingInitializer{name: "users", calls: &calls},
	}}

	if err := st.initialize(context.Background()); err == nil {
		t.Fatal("expected index error")
	}
	if strings.Join(calls, ",") != "breastcancers,centercodes" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestServer_HandlerPanicBecomes500(t *testing.T) {
	e, _ := newTestServer(t, "production")
	e.GET("/boom", func(c echo.Context) error {
		var counts map[string]int
		counts["sickle-cell"]++
		return nil
	})

	rec := serve(e, http.MethodGet, "/boom", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal error") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
