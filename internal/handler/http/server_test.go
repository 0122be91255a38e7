package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"shrimp/internal/auth"
	"shrimp/internal/blocklist"
	"shrimp/internal/clock"
	"shrimp/internal/config"
	"shrimp/internal/domain"
	"shrimp/internal/maintenance"
	"shrimp/internal/ratelimit"
	"shrimp/internal/repository/memory"
	"shrimp/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type shrimpFixture struct {
	handler http.Handler
	store   *memory.MemStorage
	clock   *testClock
	token   string
}

func newShrimpFixture(t *testing.T) *shrimpFixture {
	t.Helper()

	log := zap.NewNop()
	c := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New()

	bl, err := blocklist.Default()
	require.NoError(t, err)
	slugs := service.NewSlugAllocator(store, &config.Shortener{SlugLength: 7, MaxRetries: 5}, log)
	links := service.NewLinkService(store, slugs, bl, nil, c, log)

	jwtService := auth.NewJWTService(&auth.JWTConfig{SecretKey: []byte("test"), TokenDuration: time.Hour, Issuer: "shrimp"})
	authHandlers, err := auth.NewAuthHandlers(&config.Admin{Password: "pw"}, jwtService, auth.NewPasswordServiceWithCost(bcrypt.MinCost), log)
	require.NoError(t, err)
	token, err := jwtService.GenerateAdminToken()
	require.NoError(t, err)

	shortenLimiter := ratelimit.New("shorten", time.Minute, 3, c)
	runner := maintenance.NewRunner(log, maintenance.DefaultConfig(), maintenance.SweepJob(shortenLimiter, c, log))

	srv := NewServer(
		links,
		store,
		authHandlers,
		auth.NewMiddleware(jwtService, log),
		shortenLimiter,
		ratelimit.New("report", time.Hour, 2, c),
		runner,
		log,
		"https://shr.imp",
		"*",
		true,
	)

	return &shrimpFixture{handler: srv.SetupRoutes(), store: store, clock: c, token: token}
}

func (f *shrimpFixture) do(method, target, body string, admin bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestShortenAndRedirect(t *testing.T) {
	f := newShrimpFixture(t)

	rec := f.do(http.MethodPost, "/api/shorten", `{"url":"https://example.com/x","expires_in":1}`, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	created := decodeBody[ShortenResponse](t, rec)
	assert.Len(t, created.Slug, 7)
	assert.Equal(t, "https://shr.imp/"+created.Slug, created.ShortURL)
	require.NotNil(t, created.ExpiresAt)
	assert.Equal(t, clock.FromTime(f.clock.Now().Add(time.Hour)), *created.ExpiresAt)

	req := httptest.NewRequest(http.MethodGet, "/"+created.Slug, nil)
	req.Header.Set("Referer", "https://news.example")
	req.Header.Set("Fly-Client-Country", "NL")
	req.Header.Set("Cf-Ipcity", "Utrecht")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://example.com/x", rec.Header().Get("Location"))

	clicks, err := f.store.RecentClicks(req.Context(), created.ID, 10)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, domain.Click{
		ID:        clicks[0].ID,
		LinkID:    created.ID,
		ClickedAt: clock.FromTime(f.clock.Now()),
		Referrer:  "https://news.example",
		UserAgent: "test-agent",
		IP:        "10.0.0.1",
		Country:   "NL",
		City:      "Utrecht",
	}, clicks[0])

	// expired links look exactly like unknown ones
	f.clock.Advance(time.Hour)
	expired := f.do(http.MethodGet, "/"+created.Slug, "", false)
	unknown := f.do(http.MethodGet, "/nope123", "", false)
	for _, rec := range []*httptest.ResponseRecorder{expired, unknown} {
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Link not found\n", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	}
}

func TestShortenValidation(t *testing.T) {
	f := newShrimpFixture(t)

	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"missing url", `{}`, http.StatusBadRequest, "URL is required"},
		{"bad scheme", `{"url":"ftp://example.com"}`, http.StatusBadRequest, "Only http and https URLs are allowed"},
		{"blocked", `{"url":"https://bit.ly/abc"}`, http.StatusBadRequest, "This URL is not allowed"},
		{"malformed", `{"url":`, http.StatusBadRequest, "Invalid request format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.Advance(2 * time.Minute) // fresh rate-limit window
			rec := f.do(http.MethodPost, "/api/shorten", tt.body, false)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decodeBody[ErrorResponse](t, rec).Error)
		})
	}

	f.clock.Advance(2 * time.Minute)
	rec := f.do(http.MethodPost, "/api/shorten", `{"url":"https://example.com","slug":"taken"}`, false)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPost, "/api/shorten", `{"url":"https://example.org","slug":"taken"}`, false)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestShortenRateLimit(t *testing.T) {
	f := newShrimpFixture(t)
	body := `{"url":"https://example.com"}`

	for i := 0; i < 3; i++ {
		rec := f.do(http.MethodPost, "/api/shorten", body, false)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "3", rec.Header().Get(ratelimit.HeaderLimit))
	}

	rec := f.do(http.MethodPost, "/api/shorten", body, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(ratelimit.HeaderRemaining))
	assert.Equal(t, ratelimit.DefaultMessage, decodeBody[ErrorResponse](t, rec).Error)

	links, err := f.store.ListLinks(context.Background())
	require.NoError(t, err)
	assert.Len(t, links, 3)

	f.clock.Advance(time.Minute + time.Millisecond)
	rec = f.do(http.MethodPost, "/api/shorten", body, false)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestShortenRateLimitIgnoresClientForwardedFor(t *testing.T) {
	f := newShrimpFixture(t)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"url":"https://example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "198.51.100."+strconv.Itoa(i)+", 203.0.113.7")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestReport(t *testing.T) {
	f := newShrimpFixture(t)

	rec := f.do(http.MethodPost, "/api/links", `{"url":"https://example.com","slug":"rep"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/report/rep", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[SuccessResponse](t, rec).Success)

	rec = f.do(http.MethodPost, "/api/report/missing", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/report/rep", "", false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	f := newShrimpFixture(t)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/links"},
		{http.MethodPost, "/api/links"},
		{http.MethodGet, "/api/links/1"},
		{http.MethodPut, "/api/links/1"},
		{http.MethodDelete, "/api/links/1"},
		{http.MethodPatch, "/api/links/1/disable"},
		{http.MethodGet, "/api/links/1/analytics"},
	} {
		rec := f.do(tc.method, tc.target, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.method+" "+tc.target)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	}
}

func TestAdminVerifyIssuesUsableToken(t *testing.T) {
	f := newShrimpFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/verify", `{"password":"pw"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[auth.VerifyResponse](t, rec)
	require.True(t, resp.Success)

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.Header.Set(auth.HeaderAdminToken, resp.Token)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/auth/verify", `{"password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminLinkLifecycle(t *testing.T) {
	f := newShrimpFixture(t)

	rec := f.do(http.MethodPost, "/api/links", `{"url":"https://example.com","slug":"admin1"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	link := decodeBody[domain.Link](t, rec)

	rec = f.do(http.MethodPost, "/api/links", `{"url":"https://example.org","slug":"admin2"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	target := "/api/links/" + strconv.FormatInt(link.ID, 10)

	rec = f.do(http.MethodGet, target, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin1", decodeBody[domain.Link](t, rec).Slug)

	rec = f.do(http.MethodPut, target, `{"slug":"admin2"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPut, target, `{"url":"https://example.net","slug":"renamed"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[domain.Link](t, rec)
	assert.Equal(t, "renamed", updated.Slug)
	assert.Equal(t, "https://example.net", updated.URL)

	rec = f.do(http.MethodPatch, target+"/disable", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[domain.Link](t, rec).Disabled)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/renamed", "", false).Code)

	rec = f.do(http.MethodPatch, target+"/disable", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusMovedPermanently, f.do(http.MethodGet, "/renamed", "", false).Code)

	rec = f.do(http.MethodGet, target+"/analytics", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	analytics := decodeBody[domain.LinkAnalytics](t, rec)
	assert.Equal(t, int64(1), analytics.ClickCount)
	assert.Len(t, analytics.RecentClicks, 1)

	rec = f.do(http.MethodGet, "/api/links", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]domain.LinkWithClicks](t, rec)
	require.Len(t, list, 2)

	rec = f.do(http.MethodDelete, target, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, target, "", true).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, target, "", true).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/links/abc/analytics", "", true).Code)
}

func TestHealthAndCORS(t *testing.T) {
	f := newShrimpFixture(t)

	rec := f.do(http.MethodGet, "/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, Version, health.Version)

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/shorten", `{"url":"https://example.com"}`, false).Code)

	rec = f.do(http.MethodGet, "/ready", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadyResponse](t, rec)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, map[string]int{"shorten": 1, "report": 0}, ready.RateLimitKeys)
	require.Contains(t, ready.Maintenance, "jobs")
	assert.Contains(t, ready.Maintenance["jobs"], "sweep-shorten")

	req := httptest.NewRequest(http.MethodOptions, "/api/shorten", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
