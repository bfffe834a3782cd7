package hmr

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return normalizeOrigin(origin)
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil && u.Host != "" {
			return normalizeOrigin(u.Scheme + "://" + u.Host)
		}
	}

	return ""
}

func normalizeOrigin(origin string) string {
	origin = strings.ToLower(strings.TrimSpace(origin))
	return strings.TrimSuffix(origin, "/")
}

func isLocalhost(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// OriginPolicy decides which pages may open keep-alive connections. Requests
// without an origin (non-browser clients) and loopback origins are always
// allowed.
type OriginPolicy struct {
	allowed map[string]bool
}

func NewOriginPolicy(origins []string) *OriginPolicy {
	allowed := make(map[string]bool)
	for _, o := range origins {
		if o = normalizeOrigin(o); o != "" {
			allowed[o] = true
		}
	}
	return &OriginPolicy{allowed: allowed}
}

func (p *OriginPolicy) Allow(r *http.Request) bool {
	origin := requestOrigin(r)
	if origin == "" || isLocalhost(origin) {
		return true
	}
	return p.allowed[origin] || p.allowed["*"]
}
