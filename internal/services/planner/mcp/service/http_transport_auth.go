package service

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerConfig verifies EdDSA-signed bearer tokens on the HTTP transport.
type BearerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

var errBearerMissing = errors.New("authorization required")

// NewBearerConfig builds a verifier from the issuer, audience and a
// base64-encoded ed25519 public key. An empty issuer disables bearer checks
// and returns nil.
func NewBearerConfig(issuer, audience, publicKey string) (*BearerConfig, error) {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, nil
	}
	audience = strings.TrimSpace(audience)
	if audience == "" {
		return nil, fmt.Errorf("jwt audience is required when an issuer is set")
	}
	keyBytes, err := decodeBase64(strings.TrimSpace(publicKey))
	if err != nil {
		return nil, fmt.Errorf("decode jwt public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("jwt public key must be %d bytes", ed25519.PublicKeySize)
	}
	return &BearerConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      time.Now,
	}, nil
}

// verify checks signature, issuer, audience and expiry of token.
func (c *BearerConfig) verify(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errBearerMissing
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(c.Issuer),
		jwt.WithAudience(c.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return fmt.Errorf("invalid access token: %w", err)
	}
	return nil
}

// authorizeRequest runs the bearer check only when a verifier is configured.
func (t *HTTPTransport) authorizeRequest(w http.ResponseWriter, r *http.Request) bool {
	if t.bearer == nil {
		return true
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeUnauthorized(w, errBearerMissing.Error())
		return false
	}
	if err := t.bearer.verify(strings.TrimPrefix(authHeader, "Bearer ")); err != nil {
		if errors.Is(err, errBearerMissing) {
			writeUnauthorized(w, err.Error())
			return false
		}
		writeUnauthorized(w, "invalid access token")
		return false
	}
	return true
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="amaya"`)
	http.Error(w, message, http.StatusUnauthorized)
}

// validateLocalRequest enforces host access to mitigate DNS rebinding: the
// Host and Origin headers must resolve to loopback or an allowed host.
func (t *HTTPTransport) validateLocalRequest(r *http.Request) error {
	if r == nil {
		return fmt.Errorf("invalid request")
	}
	if !t.isAllowedHostHeader(r.Host) {
		return fmt.Errorf("invalid host")
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin")
	}
	if !t.isAllowedHostHeader(parsed.Host) {
		return fmt.Errorf("invalid origin")
	}
	return nil
}

// isAllowedHostHeader reports whether a Host/Origin header resolves to an
// allowed host. Only loopback passes unless hosts are configured.
func (t *HTTPTransport) isAllowedHostHeader(host string) bool {
	resolvedHost, ok := normalizeHost(host)
	if !ok {
		return false
	}
	if isLoopbackHost(resolvedHost) {
		return true
	}
	_, ok = t.allowedHosts[strings.ToLower(resolvedHost)]
	return ok
}

// isLoopbackHost reports whether a host is an explicit loopback name.
func isLoopbackHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	return slices.Contains([]string{"localhost", "127.0.0.1", "::1"}, host)
}

// parseAllowedHosts lowercases and de-duplicates configured hosts.
func parseAllowedHosts(hosts []string) map[string]struct{} {
	result := make(map[string]struct{}, len(hosts))
	for _, entry := range hosts {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		result[strings.ToLower(trimmed)] = struct{}{}
	}
	return result
}

// normalizeHost extracts the hostname portion from Host/Origin headers.
func normalizeHost(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", false
	}
	if strings.HasPrefix(host, "[") {
		if splitHost, _, err := net.SplitHostPort(host); err == nil {
			return splitHost, true
		}
		if strings.HasSuffix(host, "]") {
			return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), true
		}
		return "", false
	}
	if strings.Count(host, ":") > 1 {
		return host, true
	}
	if strings.Contains(host, ":") {
		splitHost, _, err := net.SplitHostPort(host)
		if err != nil {
			return "", false
		}
		return splitHost, true
	}
	return host, true
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("value is empty")
	}
	for _, encoding := range []*base64.Encoding{base64.RawStdEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.URLEncoding} {
		if decoded, err := encoding.DecodeString(value); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("value is not valid base64")
}
