package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
	"github.com/YagoMoreiraDev/projeto-helpdesk/validator"
)

// authPathPrefix is the path under which the authentication endpoints live.
// Requests to these endpoints never carry a bearer token; the durable
// refresh credential travels in an HttpOnly cookie held by the manager's
// own cookie jar.
const authPathPrefix = "/auth/"

// loginRequest is the login endpoint's request body.
type loginRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required,min=6"`
}

// authResponse is the body returned by the login and refresh endpoints.
type authResponse struct {
	TokenType   string           `json:"tokenType"`
	AccessToken string           `json:"accessToken"`
	ExpiresIn   int64            `json:"expiresIn"`
	User        *domain.Identity `json:"user"`
}

// Manager performs login, refresh and logout against the authentication
// endpoint and owns the credential store. Interested collaborators register
// change listeners instead of polling; there is no ambient global state.
type Manager struct {
	baseURL        *url.URL
	httpClient     *http.Client
	store          *Store
	logger         *slog.Logger
	refreshTimeout time.Duration
	now            func() time.Time

	mu        sync.Mutex
	listeners []func(*Session)
}

// NewManager creates a session manager for the given API origin. The manager
// uses its own HTTP client with a cookie jar so the refresh cookie set by
// the server survives across refresh calls.
func NewManager(baseURL string, requestTimeout, refreshTimeout time.Duration, logger *slog.Logger) (*Manager, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("auth: base URL %q is not an absolute URL", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("auth: create cookie jar: %w", err)
	}

	return &Manager{
		baseURL:        u,
		httpClient:     &http.Client{Timeout: requestTimeout, Jar: jar},
		store:          NewStore(),
		logger:         logger,
		refreshTimeout: refreshTimeout,
		now:            time.Now,
	}, nil
}

// Login authenticates with email and secret. On success the session record
// is replaced atomically. Rejected credentials yield ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, email, secret string) (*Session, error) {
	req := loginRequest{Email: email, Secret: secret}
	if err := validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidCredentials, err)
	}

	resp, err := m.post(ctx, "/auth/login", req)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %v", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return nil, apperrors.ErrInvalidCredentials
	default:
		return nil, apperrors.FromResponse(resp)
	}

	sess, err := m.installSession(resp)
	if err != nil {
		return nil, err
	}
	m.logger.Info("logged in",
		slog.String("user_id", sess.User.ID),
		slog.Time("expires_at", sess.ExpiresAt),
	)
	return sess, nil
}

// Refresh mints a new access token using the cookie-borne refresh
// credential. It is safe to call with no access token held (for example
// after a process restart). On failure the session is cleared and
// ErrRefreshDenied is returned.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	resp, err := m.post(ctx, "/auth/refresh", nil)
	if err != nil {
		m.clear()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRefreshDenied, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.clear()
		return nil, fmt.Errorf("%w: status %d", apperrors.ErrRefreshDenied, resp.StatusCode)
	}

	sess, err := m.installSession(resp)
	if err != nil {
		m.clear()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRefreshDenied, err)
	}
	m.logger.Debug("session refreshed", slog.Time("expires_at", sess.ExpiresAt))
	return sess, nil
}

// Logout revokes the refresh credential server-side on a best-effort basis.
// The local session is cleared unconditionally, even when the revoke call
// fails: no session survives logout.
func (m *Manager) Logout(ctx context.Context) error {
	defer m.clear()

	resp, err := m.post(ctx, "/auth/logout", nil)
	if err != nil {
		m.logger.Warn("logout revoke failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: logout: %v", apperrors.ErrTransport, err)
	}
	resp.Body.Close()
	return nil
}

// ClearSession drops the session without contacting the server. Used by the
// authorization layer when a retried call is still unauthorized.
func (m *Manager) ClearSession() {
	m.clear()
}

// IsAuthenticated reports whether a non-expired access token is held.
func (m *Manager) IsAuthenticated() bool {
	return m.store.Current().Active(m.now())
}

// CurrentUser returns the authenticated identity, or nil.
func (m *Manager) CurrentUser() *domain.Identity {
	if sess := m.store.Current(); sess != nil {
		return sess.User
	}
	return nil
}

// HasRole reports whether the authenticated user carries the given role.
func (m *Manager) HasRole(role string) bool {
	if u := m.CurrentUser(); u != nil {
		return u.HasRole(role)
	}
	return false
}

// Token returns the current access token, or the empty string.
func (m *Manager) Token() string {
	if sess := m.store.Current(); sess != nil {
		return sess.AccessToken
	}
	return ""
}

// TimeToExpiry returns how long the current token remains valid. Zero when
// no session is held or the token already expired.
func (m *Manager) TimeToExpiry() time.Duration {
	sess := m.store.Current()
	if sess == nil {
		return 0
	}
	if d := sess.ExpiresAt.Sub(m.now()); d > 0 {
		return d
	}
	return 0
}

// OnChange registers a listener invoked with the new session after every
// replace, and with nil after every clear.
func (m *Manager) OnChange(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// IsAuthEndpoint reports whether the URL targets the authentication
// endpoints, which establish their own credentials and must never enter
// the bearer/refresh protocol.
func (m *Manager) IsAuthEndpoint(u *url.URL) bool {
	return u.Host == m.baseURL.Host && strings.HasPrefix(u.Path, authPathPrefix)
}

// RequiresAuth reports whether a request to the URL must carry the access
// token: the host matches the configured API origin and the target is not
// an authentication endpoint.
func (m *Manager) RequiresAuth(u *url.URL) bool {
	if u.Host != m.baseURL.Host {
		return false
	}
	return !strings.HasPrefix(u.Path, authPathPrefix)
}

func (m *Manager) post(ctx context.Context, path string, body any) (*http.Response, error) {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL.JoinPath(path).String(), rd)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return m.httpClient.Do(req)
}

// installSession decodes an auth response and atomically replaces the
// session record.
func (m *Manager) installSession(resp *http.Response) (*Session, error) {
	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if body.AccessToken == "" || body.User == nil {
		return nil, fmt.Errorf("auth response missing token or user")
	}

	tokenType := body.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	sess := &Session{
		AccessToken: body.AccessToken,
		TokenType:   tokenType,
		User:        body.User,
		ExpiresAt:   m.expiry(body),
	}
	m.store.Replace(sess)
	m.notify(sess)
	return sess, nil
}

// expiry computes the session deadline from expiresIn, falling back to the
// token's own exp claim when the server omits it. The claim is decoded
// without signature verification; the client holds no signing key and only
// uses the value for scheduling, the server remains the authority.
func (m *Manager) expiry(body authResponse) time.Time {
	if body.ExpiresIn > 0 {
		return m.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(body.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	m.logger.Warn("auth response carried no usable expiry, assuming 60s")
	return m.now().Add(time.Minute)
}

func (m *Manager) clear() {
	m.store.Clear()
	m.notify(nil)
}

func (m *Manager) notify(sess *Session) {
	m.mu.Lock()
	listeners := make([]func(*Session), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}
