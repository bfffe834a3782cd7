package hmr

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginPolicy(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://App.example.com/"})

	tests := []struct {
		name    string
		origin  string
		referer string
		allowed bool
	}{
		{"no origin", "", "", true},
		{"localhost", "http://localhost:3000", "", true},
		{"loopback ip", "http://127.0.0.1:8080", "", true},
		{"ipv6 loopback", "http://[::1]:8080", "", true},
		{"configured", "https://app.example.com", "", true},
		{"referer fallback", "", "https://app.example.com/page?x=1", true},
		{"foreign", "https://evil.example.net", "", false},
		{"localhost lookalike", "https://localhost.evil.net", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/lazy-./a.js", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				r.Header.Set("Referer", tt.referer)
			}
			if got := policy.Allow(r); got != tt.allowed {
				t.Errorf("Allow() = %v, want %v", got, tt.allowed)
			}
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := NewOriginPolicy([]string{"*"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://anything.test")
	if !policy.Allow(r) {
		t.Error("wildcard should allow any origin")
	}
}
