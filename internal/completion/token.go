package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3/option"
)

const (
	tokenPath          = "token"
	tokenRefreshMargin = time.Minute
	tokenErrorBodySize = 512
	// Expiry values above this are milliseconds since the epoch.
	unixMilliThreshold = 1_000_000_000_000
)

// tokenSource exchanges user and password for a bearer token at
// "{base}/token" and caches it until shortly before it expires.
type tokenSource struct {
	url      string
	user     string
	password string
	client   *http.Client
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	Tok         string `json:"tok"`
	Exp         int64  `json:"exp"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func newTokenSource(baseURL, user, password string, timeout time.Duration) *tokenSource {
	return &tokenSource{
		url:      strings.TrimSuffix(strings.TrimSpace(baseURL), "/") + "/" + tokenPath,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiresAt.IsZero() || s.now().Add(tokenRefreshMargin).Before(s.expiresAt)) {
		return s.token, nil
	}

	token, expiresAt, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = expiresAt

	return token, nil
}

func (s *tokenSource) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.expiresAt = time.Time{}
}

// middleware puts the bearer token on every SDK request. A 401 drops the
// cached token so the next request fetches a new one.
func (s *tokenSource) middleware(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	token, err := s.Token(req.Context())
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := next(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		s.invalidate()
	}

	return resp, err
}

func (s *tokenSource) fetch(ctx context.Context) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(s.user, s.password)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("do token request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, tokenErrorBodySize))
		return "", time.Time{}, fmt.Errorf("token request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err = json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}

	token, exp := tr.Tok, tr.Exp
	if token == "" {
		token, exp = tr.AccessToken, tr.ExpiresAt
	}
	if token == "" {
		return "", time.Time{}, errors.New("token response has no token")
	}

	return token, expiryTime(exp), nil
}

func expiryTime(v int64) time.Time {
	switch {
	case v <= 0:
		return time.Time{}
	case v > unixMilliThreshold:
		return time.UnixMilli(v)
	default:
		return time.Unix(v, 0)
	}
}
