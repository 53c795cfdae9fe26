package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPLimiter_Allow(t *testing.T) {
	l := newIPLimiter(1, 2)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	if !l.allow("a") || !l.allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.allow("a") {
		t.Error("third request within the same instant should be limited")
	}
	if !l.allow("b") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.allow("a") {
		t.Error("a token should refill after one second")
	}
}

func TestIPLimiter_Wrap(t *testing.T) {
	l := newIPLimiter(0.001, 1)
	h := l.wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/api/symbols", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h(rec, req)
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}

	var nilLimiter *ipLimiter
	if nilLimiter.wrap(h) == nil {
		t.Error("nil limiter should pass the handler through")
	}
}
