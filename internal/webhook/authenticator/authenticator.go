// Package authenticator decides whether a webhook delivery originates from a
// trusted provider domain before the request body is read.
package authenticator

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/mentorly/sessionmeter/internal/config"
	"go.uber.org/zap"
)

var originHeaders = []string{"Origin", "Referer", "X-Forwarded-For", "X-Real-IP"}

type Authenticator struct {
	log     *zap.Logger
	allowed []string
}

func New(cfg config.Config, log *zap.Logger) *Authenticator {
	allowed := make([]string, 0, len(cfg.WebhookAllowedDomains))
	for _, d := range cfg.WebhookAllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allowed = append(allowed, d)
		}
	}
	return &Authenticator{
		log:     log.Named("webhook.authenticator"),
		allowed: allowed,
	}
}

// Authorize checks the delivery's origin headers against the allow-list.
// A request carrying none of the headers is provisionally trusted; a request
// whose headers resolve to hosts outside the list is rejected.
func (a *Authenticator) Authorize(h http.Header) bool {
	seen := false
	for _, name := range originHeaders {
		value := strings.TrimSpace(h.Get(name))
		if value == "" {
			continue
		}
		seen = true
		for _, candidate := range splitHeaderValues(name, value) {
			if a.hostAllowed(candidate) {
				return true
			}
		}
	}
	if !seen {
		return true
	}
	a.log.Warn("webhook origin rejected",
		zap.String("origin", h.Get("Origin")),
		zap.String("referer", h.Get("Referer")),
		zap.String("x_forwarded_for", h.Get("X-Forwarded-For")),
	)
	return false
}

// X-Forwarded-For carries a comma-separated proxy chain. Any trusted hop in
// the chain authorizes the delivery.
func splitHeaderValues(name, value string) []string {
	if name != "X-Forwarded-For" {
		return []string{value}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *Authenticator) hostAllowed(candidate string) bool {
	host := normalizeHost(candidate)
	if host == "" {
		return false
	}
	for _, allowed := range a.allowed {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// normalizeHost reduces a header value to a bare lowercase hostname. Values
// may arrive as full URLs (Origin, Referer), host:port pairs, or bare IPs.
func normalizeHost(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if strings.Contains(value, "://") {
		u, err := url.Parse(value)
		if err != nil || u.Host == "" {
			return ""
		}
		value = u.Host
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		return host
	}
	return value
}
