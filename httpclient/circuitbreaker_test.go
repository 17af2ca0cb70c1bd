package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
)

// stubDoer returns scripted outcomes in order, repeating the last one.
type stubDoer struct {
	outcomes []stubOutcome
	calls    int
}

type stubOutcome struct {
	status int
	err    error
}

func (s *stubDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++
	out := s.outcomes[i]
	if out.err != nil {
		return nil, out.err
	}
	return &http.Response{
		StatusCode: out.status,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
	}, nil
}

func breakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
}

func TestCircuitBreaker_PassesSuccessThrough(t *testing.T) {
	stub := &stubDoer{outcomes: []stubOutcome{{status: http.StatusOK}}}
	cb := NewCircuitBreakerClient(stub, breakerConfig("cb-ok"), slog.New(slog.DiscardHandler))

	resp, err := cb.Get(context.Background(), "http://api.local/api/tickets")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsOnServerErrors(t *testing.T) {
	stub := &stubDoer{outcomes: []stubOutcome{{status: http.StatusBadGateway}}}
	cb := NewCircuitBreakerClient(stub, breakerConfig("cb-trip"), slog.New(slog.DiscardHandler))

	for i := 0; i < 2; i++ {
		_, err := cb.Get(context.Background(), "http://api.local/api/tickets")
		assert.ErrorIs(t, err, apperrors.ErrTransport)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Open breaker rejects without reaching the backend.
	calls := stub.calls
	_, err := cb.Get(context.Background(), "http://api.local/api/tickets")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, calls, stub.calls)
}

func TestCircuitBreaker_SessionErrorsDoNotTrip(t *testing.T) {
	stub := &stubDoer{outcomes: []stubOutcome{{err: apperrors.ErrSessionExpired}}}
	cb := NewCircuitBreakerClient(stub, breakerConfig("cb-session"), slog.New(slog.DiscardHandler))

	// An expired session says nothing about backend health: however many
	// times it happens, the breaker stays closed.
	for i := 0; i < 10; i++ {
		_, err := cb.Get(context.Background(), "http://api.local/api/tickets")
		assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TransportErrorsTrip(t *testing.T) {
	stub := &stubDoer{outcomes: []stubOutcome{{err: apperrors.ErrTransport}}}
	cb := NewCircuitBreakerClient(stub, breakerConfig("cb-transport"), slog.New(slog.DiscardHandler))

	for i := 0; i < 2; i++ {
		_, err := cb.Get(context.Background(), "http://api.local/api/tickets")
		assert.ErrorIs(t, err, apperrors.ErrTransport)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	stub := &stubDoer{outcomes: []stubOutcome{
		{status: http.StatusBadGateway},
		{status: http.StatusBadGateway},
		{status: http.StatusOK},
	}}
	cfg := breakerConfig("cb-recover")
	cfg.Timeout = 20 * time.Millisecond
	cb := NewCircuitBreakerClient(stub, cfg, slog.New(slog.DiscardHandler))

	for i := 0; i < 2; i++ {
		_, _ = cb.Get(context.Background(), "http://api.local/api/tickets")
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)

	resp, err := cb.Get(context.Background(), "http://api.local/api/tickets")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
