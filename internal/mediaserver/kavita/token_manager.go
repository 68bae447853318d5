package kavita

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"komf/internal/ratelimit"
)

const (
	pluginName         = "komf"
	tokenRefreshLeeway = 5 * time.Minute
	fallbackTokenTTL   = time.Hour
)

// ErrAPIKeyMissing is returned when no Kavita API key is configured.
var ErrAPIKeyMissing = errors.New("kavita api key not configured")

// TokenManager exchanges the API key for a session JWT and refreshes it
// before it expires.
type TokenManager struct {
	http    *ratelimit.Client
	baseURL string
	apiKey  string
	now     func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewTokenManager builds a TokenManager for the server at baseURL.
func NewTokenManager(httpClient *ratelimit.Client, baseURL, apiKey string) *TokenManager {
	return &TokenManager{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		now:     time.Now,
	}
}

// Token returns a valid JWT, refreshing it when missing or about to expire.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cachedToken(); ok {
		return token, nil
	}
	return m.refreshToken(ctx)
}

// Invalidate drops the cached token, typically after a 401.
func (m *TokenManager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == token {
		m.token = ""
		m.expiresAt = time.Time{}
	}
}

func (m *TokenManager) cachedToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token != "" && m.expiresAt.Sub(m.now()) > tokenRefreshLeeway {
		return m.token, true
	}
	return "", false
}

func (m *TokenManager) refreshToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.expiresAt.Sub(m.now()) > tokenRefreshLeeway {
		return m.token, nil
	}
	if m.apiKey == "" {
		return "", ErrAPIKeyMissing
	}

	params := url.Values{"apiKey": {m.apiKey}, "pluginName": {pluginName}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/Plugin/authenticate?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build authenticate request: %w", err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := m.http.DoJSON(req, &resp); err != nil {
		return "", fmt.Errorf("authenticate with kavita: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("authenticate with kavita: empty token")
	}

	m.token = resp.Token
	m.expiresAt = m.expiry(resp.Token)
	return m.token, nil
}

// expiry reads the exp claim without verifying the signature; the token is
// only ever sent back to the server that issued it.
func (m *TokenManager) expiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return m.now().Add(fallbackTokenTTL)
}
