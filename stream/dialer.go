package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
)

// Dialer opens the server-push connection. The access token travels as part
// of the subscription address, never as a header: the browser-equivalent
// transport (EventSource) cannot attach custom headers, and this interface
// encodes that constraint so swapping transports cannot silently break the
// design.
type Dialer interface {
	Dial(ctx context.Context, streamURL string) (io.ReadCloser, error)
}

// sseDialer opens a long-lived GET subscription speaking the
// text/event-stream protocol.
type sseDialer struct {
	client *http.Client
}

func newSSEDialer() *sseDialer {
	return &sseDialer{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 30 * time.Second,
			},
			// No overall timeout: the subscription is long-lived.
		},
	}
}

func (d *sseDialer) Dial(ctx context.Context, streamURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", apperrors.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: stream endpoint returned %d", apperrors.ErrTransport, resp.StatusCode)
	}
	return resp.Body, nil
}
