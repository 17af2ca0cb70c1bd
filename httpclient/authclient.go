package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/YagoMoreiraDev/projeto-helpdesk/auth"
	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
	"github.com/YagoMoreiraDev/projeto-helpdesk/logger"
)

// correlationHeader carries a per-request ID the backend echoes into its
// own logs.
const correlationHeader = "X-Correlation-ID"

// refreshCall is the single-flight future shared by every request that hit
// an unauthorized response while it was in flight. The first failer creates
// it and runs the refresh; the rest wait on done and read token or err.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// AuthClient wraps Client with the bearer-token protocol: it attaches the
// current access token to requests targeting the protected API origin and
// recovers expired-token responses with at most one refresh in flight at
// any time. Each failed request is replayed at most once with the token
// obtained from that single refresh. Every other response passes through
// unmodified.
type AuthClient struct {
	client *Client
	auth   *auth.Manager
	logger *slog.Logger

	mu       sync.Mutex
	inflight *refreshCall
}

// NewAuthClient creates an authorized client on top of the retrying base
// client and the session manager.
func NewAuthClient(client *Client, mgr *auth.Manager, log *slog.Logger) *AuthClient {
	return &AuthClient{
		client: client,
		auth:   mgr,
		logger: log,
	}
}

// Do executes the request, attaching authorization and recovering a single
// expired-token response. A request that is unauthorized again after the
// replay does not re-enter the refresh protocol: it fails with
// ErrSessionExpired and the session is cleared.
func (c *AuthClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !c.auth.RequiresAuth(req.URL) {
		// Auth endpoints and foreign hosts: no bearer token, no recovery.
		return c.client.Do(ctx, req)
	}

	if err := ensureReplayable(req); err != nil {
		return nil, err
	}

	if req.Header.Get(correlationHeader) == "" {
		id := logger.CorrelationIDFromContext(ctx)
		if id == "" {
			id = uuid.NewString()
		}
		req.Header.Set(correlationHeader, id)
	}

	if tok := c.auth.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	tok, err := c.awaitRefresh(ctx)
	if err != nil {
		return nil, err
	}

	retry, err := cloneForReplay(ctx, req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+tok)

	resp, err = c.client.Do(ctx, retry)
	if err != nil {
		replayedRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Still rejected with a fresh token: do not loop, the session is gone.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.auth.ClearSession()
		replayedRequestsTotal.WithLabelValues("unauthorized").Inc()
		return nil, apperrors.ErrSessionExpired
	}
	replayedRequestsTotal.WithLabelValues("ok").Inc()
	return resp, nil
}

// Get performs an authorized GET request.
func (c *AuthClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// Post performs an authorized POST request.
func (c *AuthClient) Post(ctx context.Context, url string, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// awaitRefresh joins the in-flight refresh, creating one if none exists.
// The refresh itself runs detached from the initiating request's context:
// its result is shared by every waiter, so one caller hanging up must not
// cancel it for the others. The session manager bounds its duration.
func (c *AuthClient) awaitRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	call := c.inflight
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		c.inflight = call
		c.mu.Unlock()

		sess, err := c.auth.Refresh(context.WithoutCancel(ctx))
		if err != nil {
			tokenRefreshTotal.WithLabelValues("denied").Inc()
			c.logger.Warn("token refresh denied", slog.String("error", err.Error()))
			call.err = fmt.Errorf("%w: %v", apperrors.ErrSessionExpired, err)
		} else {
			tokenRefreshTotal.WithLabelValues("ok").Inc()
			call.token = sess.AccessToken
		}

		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		close(call.done)
	} else {
		refreshWaitersTotal.Inc()
		c.mu.Unlock()
	}

	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ensureReplayable buffers the request body so the single post-refresh
// replay (and the base client's own retries) can resend it.
func ensureReplayable(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	buf, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(buf))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	return nil
}

// cloneForReplay builds the one retried request with a fresh body.
func cloneForReplay(ctx context.Context, req *http.Request) (*http.Request, error) {
	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retry.Body = body
	}
	return retry, nil
}
