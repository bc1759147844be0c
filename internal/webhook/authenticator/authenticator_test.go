package authenticator

import (
	"net/http"
	"testing"

	"github.com/mentorly/sessionmeter/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestAuthenticator() *Authenticator {
	return New(config.Config{
		WebhookAllowedDomains: []string{"tavus.io", "webhook.tavus.io", "api.tavus.io", "tavusapi.com", "tavus.daily.co"},
	}, zap.NewNop())
}

func headers(pairs ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

func TestAuthorizeTrustedOrigin(t *testing.T) {
	a := newTestAuthenticator()

	assert.True(t, a.Authorize(headers("Origin", "https://tavus.io")))
	assert.True(t, a.Authorize(headers("Origin", "https://webhook.tavus.io")))
	assert.True(t, a.Authorize(headers("Origin", "https://tavus.io:443")))
	assert.True(t, a.Authorize(headers("Referer", "https://api.tavus.io/webhooks/send")))
}

func TestAuthorizeSubdomainSuffix(t *testing.T) {
	a := newTestAuthenticator()

	assert.True(t, a.Authorize(headers("Origin", "https://eu-west.tavusapi.com")))
	assert.False(t, a.Authorize(headers("Origin", "https://nottavus.io")))
	assert.False(t, a.Authorize(headers("Origin", "https://tavus.io.evil.com")))
}

func TestAuthorizeRejectsUnknownOrigin(t *testing.T) {
	a := newTestAuthenticator()

	assert.False(t, a.Authorize(headers("Origin", "https://malicious.com")))
	assert.False(t, a.Authorize(headers("Referer", "https://phish.example/path")))
	assert.False(t, a.Authorize(headers("X-Real-IP", "203.0.113.9")))
}

func TestAuthorizeAbsentHeadersTrusted(t *testing.T) {
	a := newTestAuthenticator()

	assert.True(t, a.Authorize(http.Header{}))
}

func TestAuthorizeForwardedForChain(t *testing.T) {
	a := newTestAuthenticator()

	assert.True(t, a.Authorize(headers("X-Forwarded-For", "203.0.113.9, webhook.tavus.io")))
	assert.False(t, a.Authorize(headers("X-Forwarded-For", "203.0.113.9, 198.51.100.4")))
}

func TestAuthorizeAnyTrustedHeaderWins(t *testing.T) {
	a := newTestAuthenticator()

	h := headers(
		"Origin", "https://malicious.com",
		"Referer", "https://tavus.daily.co/rooms/abc",
	)
	assert.True(t, a.Authorize(h))
}
