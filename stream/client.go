package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/YagoMoreiraDev/projeto-helpdesk/auth"
	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
)

// Connection states.
const (
	StateDisconnected = "DISCONNECTED"
	StateConnecting   = "CONNECTING"
	StateConnected    = "CONNECTED"
	StateReconnecting = "RECONNECTING"
)

// StateChange is published to state subscribers on every transition. Err is
// set when the transition was caused by a failure; a terminal refresh
// denial carries ErrSessionExpired.
type StateChange struct {
	State string
	Err   error
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses events; the REST snapshot path recovers them.
const subscriberBuffer = 32

// Config holds stream client configuration.
type Config struct {
	// BaseURL is the API origin; Path is appended to it.
	BaseURL string
	Path    string

	// ReconnectDelay is the fixed pause between reconnect attempts. The
	// dominant failure mode is token expiry, which one refresh resolves,
	// so the backoff is deliberately constant rather than exponential.
	ReconnectDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the transport used to open the subscription.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client maintains the single logical notification subscription for the
// process: one underlying connection, fanned out to any number of
// subscribers. Connect is idempotent; a second connection is never opened
// while one is active or connecting.
type Client struct {
	cfg    Config
	auth   *auth.Manager
	dialer Dialer
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	// gen identifies the current connection cycle. The run goroutine of a
	// closed cycle can outlive Close (its blocking read unwinds later); a
	// stale generation must not publish or clear state owned by a newer one.
	gen       uint64
	state     string
	subs      map[string]chan domain.NotificationEvent
	stateSubs map[string]chan StateChange
}

// NewClient creates a notification stream client.
func NewClient(cfg Config, mgr *auth.Manager, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg,
		auth:      mgr,
		dialer:    newSSEDialer(),
		logger:    log,
		state:     StateDisconnected,
		subs:      make(map[string]chan domain.NotificationEvent),
		stateSubs: make(map[string]chan StateChange),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe returns a channel of pushed events and a cancel function. The
// channel is closed when the subscription is cancelled. Events arrive in
// transport-delivery order; duplicates are possible and must be folded
// through an idempotent merge.
func (c *Client) Subscribe() (<-chan domain.NotificationEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan domain.NotificationEvent, subscriberBuffer)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// States returns a channel of connection state transitions and a cancel
// function. Exactly one StateChange is published per transition.
func (c *Client) States() (<-chan StateChange, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan StateChange, 8)
	c.stateSubs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.stateSubs[id]; ok {
			delete(c.stateSubs, id)
			close(ch)
		}
	}
}

// State returns the current connection state.
func (c *Client) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the subscription. It is idempotent: calling it while the
// client is active or connecting is a no-op. The connection lives until
// Close is called, the context is cancelled, or a token refresh is denied.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.gen++

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx, c.gen)
}

// Close tears the subscription down. It is idempotent, cancels any pending
// reconnect timer, and guarantees that no event or state change is
// published after it returns. A later Connect starts a fresh cycle.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	c.cancel = nil
	if c.state != StateDisconnected {
		c.state = StateDisconnected
		c.broadcastStateLocked(StateChange{State: StateDisconnected})
	}
	c.running = false
}

func (c *Client) run(ctx context.Context, gen uint64) {
	defer func() {
		c.mu.Lock()
		if c.gen == gen {
			c.running = false
			c.cancel = nil
		}
		c.mu.Unlock()
	}()

	bo := backoff.NewConstantBackOff(c.cfg.ReconnectDelay)

	for {
		c.setState(gen, StateConnecting, nil)

		token, err := c.token(ctx)
		if err != nil {
			c.setState(gen, StateDisconnected, fmt.Errorf("%w: %v", apperrors.ErrSessionExpired, err))
			return
		}

		body, err := c.dialer.Dial(ctx, c.streamURL(token))
		if err != nil {
			if ctx.Err() != nil {
				c.setState(gen, StateDisconnected, nil)
				return
			}
			if !c.recover(ctx, gen, bo, err) {
				return
			}
			continue
		}

		c.setState(gen, StateConnected, nil)
		consumeErr := c.consume(ctx, gen, body)
		body.Close()

		if ctx.Err() != nil {
			c.setState(gen, StateDisconnected, nil)
			return
		}
		if !c.recover(ctx, gen, bo, consumeErr) {
			return
		}
	}
}

// recover handles one transport-error cycle: publish RECONNECTING, attempt
// one token refresh, wait the fixed backoff. It returns false when the loop
// must stop (refresh denied or context cancelled).
func (c *Client) recover(ctx context.Context, gen uint64, bo *backoff.ConstantBackOff, cause error) bool {
	reconnectsTotal.Inc()
	c.setState(gen, StateReconnecting, cause)
	c.logger.Warn("notification stream interrupted", slog.String("error", errString(cause)))

	if _, err := c.auth.Refresh(context.WithoutCancel(ctx)); err != nil {
		c.setState(gen, StateDisconnected, fmt.Errorf("%w: %v", apperrors.ErrSessionExpired, err))
		return false
	}
	if !c.sleep(ctx, bo.NextBackOff()) {
		c.setState(gen, StateDisconnected, nil)
		return false
	}
	return true
}

// token returns a token to embed in the subscription address: the current
// one when still valid, otherwise the result of a refresh.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.auth.IsAuthenticated() {
		return c.auth.Token(), nil
	}
	sess, err := c.auth.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func (c *Client) streamURL(token string) string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		// Config is validated upstream; fall back to naive joining.
		return c.cfg.BaseURL + c.cfg.Path + "?access_token=" + url.QueryEscape(token)
	}
	u = u.JoinPath(c.cfg.Path)
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// consume reads the event stream until it fails or the context is
// cancelled. Messages are data:-framed JSON; comment lines (heartbeats)
// are ignored; malformed payloads are dropped and logged, never fatal.
func (c *Client) consume(ctx context.Context, gen uint64, body io.Reader) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var data []string
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				c.dispatch(gen, strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:/id:/retry: fields are not used by this protocol.
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: read stream: %v", apperrors.ErrTransport, err)
	}
	return fmt.Errorf("%w: stream closed by server", apperrors.ErrTransport)
}

func (c *Client) dispatch(gen uint64, payload string) {
	ev, err := domain.ParseEvent([]byte(payload))
	if err != nil {
		droppedEventsTotal.Inc()
		c.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
		return
	}
	eventsTotal.WithLabelValues(ev.Type).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.gen != gen {
		return
	}
	for id, ch := range c.subs {
		select {
		case ch <- *ev:
		default:
			droppedEventsTotal.Inc()
			c.logger.Warn("subscriber lagging, dropping event", slog.String("subscriber", id))
		}
	}
}

// setState records a transition and publishes exactly one StateChange for
// it. Repeated sets of the same state publish nothing, and neither does a
// stale generation.
func (c *Client) setState(gen uint64, state string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.gen != gen || c.state == state {
		return
	}
	c.state = state
	c.broadcastStateLocked(StateChange{State: state, Err: err})
}

func (c *Client) broadcastStateLocked(change StateChange) {
	for _, ch := range c.stateSubs {
		select {
		case ch <- change:
		default:
		}
	}
}

// sleep waits the given delay, returning false when the context is
// cancelled first. Cancellation here is what guarantees no stray reconnect
// fires after teardown.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
