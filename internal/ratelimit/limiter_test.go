package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shrimp/internal/clock"
)

// manualClock is a settable clock for window arithmetic.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

var _ clock.Clock = (*manualClock)(nil)

func TestCheckBlocksOnlyPastMax(t *testing.T) {
	c := newClock()
	l := New("test", time.Minute, 3, c)

	for i := 1; i <= 3; i++ {
		res := l.Check("1.2.3.4")
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3-i, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	res := l.Check("1.2.3.4")
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, c.Now().Add(time.Minute), res.ResetAt)

	// other clients have their own window
	assert.True(t, l.Check("5.6.7.8").Allowed)
}

func TestWindowResets(t *testing.T) {
	c := newClock()
	l := New("test", time.Minute, 1, c)

	require.True(t, l.Check("k").Allowed)
	require.False(t, l.Check("k").Allowed)

	// the window end itself is still inside the window
	c.Advance(time.Minute)
	assert.False(t, l.Check("k").Allowed)

	c.Advance(time.Millisecond)
	res := l.Check("k")
	assert.True(t, res.Allowed)
	assert.Zero(t, res.Remaining)
}

func TestSweepKeepsOpenWindows(t *testing.T) {
	c := newClock()
	l := New("test", time.Minute, 5, c)

	l.Check("old")
	c.Advance(45 * time.Second)
	l.Check("fresh")
	assert.Equal(t, 2, l.Len())

	// "old" ended at +60s, "fresh" ends at +105s
	removed := l.Sweep(c.Now().Add(30 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())

	res := l.Check("fresh")
	assert.Equal(t, 3, res.Remaining)
}

func TestCheckIsSafeForConcurrentUse(t *testing.T) {
	l := New("test", time.Hour, 100, newClock())

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("same").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}

func TestMiddleware(t *testing.T) {
	c := newClock()
	c.now = c.now.Add(500 * time.Millisecond)
	l := New("shorten", time.Minute, 1, c)

	handler := Middleware(l, "", false, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/shorten", nil)
	req.RemoteAddr = "10.1.1.1:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(HeaderLimit))
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))
	// reset is rounded up to the next whole second
	wantReset := c.Now().Add(time.Minute).Unix() + 1
	gotReset, err := strconv.ParseInt(rec.Header().Get(HeaderReset), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, wantReset, gotReset)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientKey(req, true))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", ClientKey(req, false))
	assert.Equal(t, "10.0.0.1", ClientKey(req, true))

	req.Header.Add("X-Forwarded-For", "198.51.100.7 ")
	assert.Equal(t, "198.51.100.7", ClientKey(req, true))

	req.Header.Set("X-Forwarded-For", " , ")
	assert.Equal(t, "192.0.2.1", ClientKey(req, true))
}

func TestMiddlewareIgnoresSpoofedHops(t *testing.T) {
	l := New("shorten", time.Minute, 2, newClock())
	handler := Middleware(l, "", true, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/shorten", nil)
		req.Header.Set("X-Forwarded-For", spoofed+", 203.0.113.50")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, l.Len())
}
