// Package helpdesk is the client runtime for the helpdesk backend: it owns
// the session lifecycle, authorizes every outbound API call with a
// single-flight refresh protocol, keeps the push-notification stream alive,
// and provides the merge helpers views use to reconcile their ticket lists.
package helpdesk

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/YagoMoreiraDev/projeto-helpdesk/auth"
	"github.com/YagoMoreiraDev/projeto-helpdesk/config"
	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
	"github.com/YagoMoreiraDev/projeto-helpdesk/httpclient"
	"github.com/YagoMoreiraDev/projeto-helpdesk/stream"
	"github.com/YagoMoreiraDev/projeto-helpdesk/ticket"
)

// Client wires the session manager, the authorized HTTP client, the
// notification stream and the ticket API into one consumer-facing surface.
type Client struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *auth.Manager
	http    *httpclient.AuthClient
	api     httpclient.Doer
	stream  *stream.Client
	tickets *ticket.Client
}

// New builds a client from configuration.
func New(cfg *config.Config, log *slog.Logger) (*Client, error) {
	sessionMgr, err := auth.NewManager(cfg.APIBaseURL, cfg.RequestTimeout, cfg.RefreshTimeout, log)
	if err != nil {
		return nil, err
	}

	baseCfg := httpclient.DefaultConfig()
	baseCfg.Timeout = cfg.RequestTimeout
	baseCfg.MaxRetries = cfg.MaxRetries
	authClient := httpclient.NewAuthClient(httpclient.New(baseCfg), sessionMgr, log)

	var api httpclient.Doer = authClient
	if cfg.BreakerEnabled {
		api = httpclient.NewCircuitBreakerClient(
			authClient,
			httpclient.DefaultCircuitBreakerConfig("helpdesk-api"),
			log,
		)
	}

	streamClient := stream.NewClient(stream.Config{
		BaseURL:        cfg.APIBaseURL,
		Path:           cfg.StreamPath,
		ReconnectDelay: cfg.ReconnectDelay,
	}, sessionMgr, log)

	return &Client{
		cfg:     cfg,
		logger:  log,
		session: sessionMgr,
		http:    authClient,
		api:     api,
		stream:  streamClient,
		tickets: ticket.NewClient(api, cfg.APIBaseURL, log),
	}, nil
}

// Login authenticates and installs a session.
func (c *Client) Login(ctx context.Context, email, secret string) error {
	_, err := c.session.Login(ctx, email, secret)
	return err
}

// Logout revokes the session server-side (best effort) and clears it
// locally, then tears down the notification stream.
func (c *Client) Logout(ctx context.Context) error {
	c.stream.Close()
	return c.session.Logout(ctx)
}

// IsAuthenticated reports whether a non-expired session is held.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// CurrentUser returns the authenticated identity, or nil.
func (c *Client) CurrentUser() *domain.Identity {
	return c.session.CurrentUser()
}

// HasRole reports whether the authenticated user carries the given role.
func (c *Client) HasRole(role string) bool {
	return c.session.HasRole(role)
}

// TimeToExpiry returns the remaining validity of the access token.
func (c *Client) TimeToExpiry() time.Duration {
	return c.session.TimeToExpiry()
}

// Session exposes the session manager to collaborators that need change
// notifications or direct refresh control.
func (c *Client) Session() *auth.Manager {
	return c.session
}

// Do executes an arbitrary authorized request against the API, applying
// the bearer-token and single-flight refresh protocol.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.api.Do(ctx, req)
}

// Tickets returns the typed ticket API client.
func (c *Client) Tickets() *ticket.Client {
	return c.tickets
}

// Connect starts the notification stream. Idempotent.
func (c *Client) Connect(ctx context.Context) {
	c.stream.Connect(ctx)
}

// Subscribe returns a channel of pushed notification events and a cancel
// function. Feed each event through the reconcile helpers to keep a view's
// list consistent.
func (c *Client) Subscribe() (<-chan domain.NotificationEvent, func()) {
	return c.stream.Subscribe()
}

// StreamStates returns a channel of stream state transitions.
func (c *Client) StreamStates() (<-chan stream.StateChange, func()) {
	return c.stream.States()
}

// Close tears down the notification stream. The session is left intact;
// call Logout to clear it.
func (c *Client) Close() {
	c.stream.Close()
}
