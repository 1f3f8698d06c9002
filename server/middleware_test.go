package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/giygas/qualite-eau-api/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("allowed"))
	})
}

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		expectedCost int64
	}{
		{"Metrics", "/metrics", 0},
		{"Health", "/health", 5},
		{"Health with params", "/health?verbose=1", 5},
		{"Categories", "/v1/categories", 5},
		{"Glossary", "/v1/glossary", 5},
		{"Communes", "/v1/communes/33000", 5},
		{"Quality whole postal code", "/v1/quality/33000", 50},
		{"Quality single commune", "/v1/quality/33160?insee=33449", 20},
		{"Quality empty insee", "/v1/quality/33160?insee=", 50},
		{"Export", "/v1/quality/33000/export", 60},
		{"Export with format", "/v1/quality/33000/export?format=json", 60},
		{"Compare", "/v1/compare?codes=33000,75001", 100},
		{"Unknown", "/unknown", 10},
		{"Root", "/", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost := getTokenCost(httptest.NewRequest("GET", tt.target, nil))
			if cost != tt.expectedCost {
				t.Errorf("Expected cost %d for %s, got %d", tt.expectedCost, tt.target, cost)
			}
		})
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	handler := rl.Middleware(okHandler())

	// 1000 tokens allow 20 whole postal code reports in a burst.
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest("GET", "/v1/quality/33000", nil)
		req.RemoteAddr = "203.0.113.7"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, rr.Code)
		}
		if rr.Header().Get("X-RateLimit-Limit") != "1000" {
			t.Errorf("Unexpected X-RateLimit-Limit %q", rr.Header().Get("X-RateLimit-Limit"))
		}
	}

	req := httptest.NewRequest("GET", "/v1/quality/33000", nil)
	req.RemoteAddr = "203.0.113.7"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" || rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Unexpected headers %v", rr.Header())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON error body: %v", err)
	}
	if body["error"] != "Too Many Requests" {
		t.Errorf("Unexpected error body %v", body)
	}

	// Free endpoints and other clients are unaffected.
	req = httptest.NewRequest("GET", "/metrics", nil)
	req.RemoteAddr = "203.0.113.7"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected /metrics to stay free, got %d", rr.Code)
	}

	req = httptest.NewRequest("GET", "/v1/quality/33000", nil)
	req.RemoteAddr = "198.51.100.2"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected another client to be served, got %d", rr.Code)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter()
	rl.getBucket("203.0.113.1")
	busy := rl.getBucket("203.0.113.2")
	busy.TakeAvailable(100)

	if removed := rl.sweep(); removed != 1 {
		t.Errorf("Expected 1 idle client removed, got %d", removed)
	}
	if _, ok := rl.clients["203.0.113.2"]; !ok {
		t.Error("Client with a drained bucket should be kept")
	}
}

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		expected   string
	}{
		{"single forwarded IP", "203.0.113.1", "192.168.1.1:12345", "203.0.113.1"},
		{"forwarded chain", "203.0.113.1, 10.0.0.1", "192.168.1.1:12345", "203.0.113.1"},
		{"no header strips port", "", "192.168.1.1:12345", "192.168.1.1"},
		{"no header without port", "", "192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			var seen string
			RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.RemoteAddr
			})).ServeHTTP(httptest.NewRecorder(), req)

			if seen != tt.expected {
				t.Errorf("Expected RemoteAddr %q, got %q", tt.expected, seen)
			}
		})
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		remoteAddr  string
		headers     map[string]string
		allowDirect bool
		expected    int
	}{
		{"localhost IPv4", "127.0.0.1:12345", nil, false, http.StatusOK},
		{"localhost IPv6", "[::1]:12345", nil, false, http.StatusOK},
		{"direct IP", "192.168.1.1:12345", nil, false, http.StatusForbidden},
		{"direct IP allowed", "192.168.1.1:12345", nil, true, http.StatusOK},
		{"forwarded", "192.168.1.1:12345", map[string]string{"X-Forwarded-For": "203.0.113.1"}, false, http.StatusOK},
		{"real IP header", "192.168.1.1:12345", map[string]string{"X-Real-IP": "203.0.113.1"}, false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			BlockDirectAccessMiddleware(tt.allowDirect)(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 1024 * 1024, MaxHeaderSize: 64}

	tests := []struct {
		name          string
		contentLength string
		headerValue   string
		expected      int
	}{
		{"no content length", "", "", http.StatusOK},
		{"exact max size", "1048576", "", http.StatusOK},
		{"body too large", "2000000", "", http.StatusRequestEntityTooLarge},
		{"negative content length", "-100", "", http.StatusOK},
		{"headers too large", "", strings.Repeat("x", 100), http.StatusRequestHeaderFieldsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.contentLength != "" {
				req.Header.Set("Content-Length", tt.contentLength)
			}
			if tt.headerValue != "" {
				req.Header.Set("X-Padding", tt.headerValue)
			}
			rr := httptest.NewRecorder()
			RequestSizeMiddleware(cfg)(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}
