package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"page-counter/internal/config"
	"page-counter/internal/logger"
	"page-counter/internal/visitor"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestTokenBucketRefillsEachSecond(t *testing.T) {
	now := time.Unix(1000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()

	if !tb.allow() || !tb.allow() {
		t.Fatal("first two requests must pass")
	}
	if tb.allow() {
		t.Fatal("third request in the same second must be rejected")
	}
	now = now.Add(time.Second)
	if !tb.allow() {
		t.Fatal("bucket not refilled")
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(0, okHandler)
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/count", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h := Wrap(okHandler, 0, nil)
	req := httptest.NewRequest(http.MethodOptions, "/count", nil)
	req.Header.Set("Origin", "https://blog.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatal("credentials must not be allowed")
	}
}

func TestCORSSimpleRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/count", nil)
	req.Header.Set("Origin", "https://blog.test")
	rec := httptest.NewRecorder()
	Wrap(okHandler, 0, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("status=%d headers=%v", rec.Code, rec.Header())
	}
}

func TestOriginLock(t *testing.T) {
	trusted, err := visitor.ParseRanges([]string{"173.245.48.0/20"})
	if err != nil {
		t.Fatalf("ranges: %v", err)
	}
	var logs bytes.Buffer
	lock, err := NewOriginLock(trusted, config.OriginConfig{AllowCIDRs: []string{"10.0.0.0/8"}, AllowLocal: true}, logger.New(&logs, "error", "text"))
	if err != nil {
		t.Fatalf("NewOriginLock: %v", err)
	}
	h := Wrap(okHandler, 0, lock)
	cases := map[string]int{
		"173.245.48.1:443":  http.StatusOK,
		"10.1.2.3:80":       http.StatusOK,
		"127.0.0.1:9000":    http.StatusOK,
		"[::1]:9000":        http.StatusOK,
		"198.51.100.1:443":  http.StatusForbidden,
		"[2001:db8::1]:443": http.StatusForbidden,
		"garbage":           http.StatusForbidden,
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/count", nil)
		req.RemoteAddr = remote
		// 请求头不影响判定
		req.Header.Set(visitor.ForwardedHeader, "173.245.48.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status %d, want %d", remote, rec.Code, want)
		}
	}
}

func TestOriginLockRejectsBadAllowList(t *testing.T) {
	var logs bytes.Buffer
	_, err := NewOriginLock(visitor.TrustedRanges{}, config.OriginConfig{AllowCIDRs: []string{"10.0.0.0/99"}}, logger.New(&logs, "error", "text"))
	if err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
}
