package helpdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YagoMoreiraDev/projeto-helpdesk/config"
	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
)

// fakeHelpdesk is a minimal backend covering the full client surface:
// login, refresh, tickets and the notification stream.
func fakeHelpdesk(t *testing.T) *httptest.Server {
	t.Helper()

	writeAuth := func(w http.ResponseWriter, token string) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tokenType":   "Bearer",
			"accessToken": token,
			"expiresIn":   3600,
			"user": domain.Identity{
				ID: "u-1", DisplayName: "Ana", Email: "a@x.com",
				Roles: []string{domain.RoleTechnician},
			},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeAuth(w, "T1")
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/tickets/open", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]domain.Ticket{
			{ID: "t-1", Title: "vpn down", Status: domain.StatusOpen, Priority: domain.PriorityHigh},
		})
	})
	mux.HandleFunc("GET /api/notifications/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		f := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"TICKET_CREATED\",\"payload\":{\"id\":\"t-2\",\"title\":\"new\",\"status\":\"OPEN\"}}\n\n")
		f.Flush()
		<-r.Context().Done()
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testClientConfig(baseURL string) *config.Config {
	return &config.Config{
		Environment:    "test",
		LogLevel:       "error",
		APIBaseURL:     baseURL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     0,
		RefreshTimeout: 2 * time.Second,
		StreamPath:     "/api/notifications/stream",
		ReconnectDelay: 10 * time.Millisecond,
		BreakerEnabled: true,
	}
}

func TestClient_LoginFetchAndStream(t *testing.T) {
	ts := fakeHelpdesk(t)

	client, err := New(testClientConfig(ts.URL), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Login(context.Background(), "a@x.com", "s3cret1"))
	assert.True(t, client.IsAuthenticated())
	assert.True(t, client.HasRole(domain.RoleTechnician))
	assert.Equal(t, "u-1", client.CurrentUser().ID)
	assert.Positive(t, client.TimeToExpiry())

	open, err := client.Tickets().Open(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "t-1", open[0].ID)

	events, cancel := client.Subscribe()
	defer cancel()
	client.Connect(context.Background())

	select {
	case ev := <-events:
		assert.Equal(t, domain.EventTicketCreated, ev.Type)
		assert.Equal(t, "t-2", ev.Payload.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pushed event")
	}
}

func TestClient_LogoutClearsSessionAndStream(t *testing.T) {
	ts := fakeHelpdesk(t)

	client, err := New(testClientConfig(ts.URL), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	require.NoError(t, client.Login(context.Background(), "a@x.com", "s3cret1"))
	client.Connect(context.Background())

	require.NoError(t, client.Logout(context.Background()))
	assert.False(t, client.IsAuthenticated())
	assert.Nil(t, client.CurrentUser())
}
