package ticket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
)

// recordingDoer captures the last request and returns a canned response.
type recordingDoer struct {
	lastMethod string
	lastPath   string
	lastQuery  string
	lastBody   []byte
	calls      int

	status int
	body   string
}

func (d *recordingDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	d.calls++
	d.lastMethod = req.Method
	d.lastPath = req.URL.Path
	d.lastQuery = req.URL.RawQuery
	if req.Body != nil {
		d.lastBody, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}
	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func newTestClient(d *recordingDoer) *Client {
	return NewClient(d, "http://api.local", slog.New(slog.DiscardHandler))
}

func ticketJSON(id, status string) string {
	b, _ := json.Marshal(domain.Ticket{ID: id, Title: "printer down", Status: status, Priority: domain.PriorityHigh})
	return string(b)
}

func TestCreate(t *testing.T) {
	d := &recordingDoer{status: http.StatusCreated, body: ticketJSON("t-1", domain.StatusOpen)}
	c := newTestClient(d)

	got, err := c.Create(context.Background(), CreateRequest{
		Title:       "printer down",
		Description: "third floor printer jams on every job",
		Priority:    domain.PriorityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, "t-1", got.ID)
	assert.Equal(t, http.MethodPost, d.lastMethod)
	assert.Equal(t, "/api/tickets", d.lastPath)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(d.lastBody, &sent))
	assert.Equal(t, "printer down", sent["title"])
	assert.Equal(t, domain.PriorityHigh, sent["priority"])
}

func TestCreate_InvalidInputNeverSent(t *testing.T) {
	d := &recordingDoer{status: http.StatusCreated, body: "{}"}
	c := newTestClient(d)

	_, err := c.Create(context.Background(), CreateRequest{Title: "x", Description: "", Priority: "URGENT"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, d.calls, "invalid input must be rejected before any request")
}

func TestTake(t *testing.T) {
	d := &recordingDoer{status: http.StatusOK, body: ticketJSON("t-1", domain.StatusInProgress)}
	c := newTestClient(d)

	got, err := c.Take(context.Background(), "t-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Equal(t, "/api/tickets/t-1/take", d.lastPath)
}

func TestChangeStatus(t *testing.T) {
	d := &recordingDoer{status: http.StatusOK, body: ticketJSON("t-1", domain.StatusDone)}
	c := newTestClient(d)

	got, err := c.ChangeStatus(context.Background(), "t-1", StatusChangeRequest{
		NewStatus: domain.StatusDone,
		Detail:    "replaced the fuser",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, "/api/tickets/t-1/status", d.lastPath)
}

func TestChangeStatus_RejectsUnknownStatus(t *testing.T) {
	d := &recordingDoer{status: http.StatusOK, body: "{}"}
	c := newTestClient(d)

	_, err := c.ChangeStatus(context.Background(), "t-1", StatusChangeRequest{NewStatus: "RESOLVED"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, d.calls)
}

func TestComment(t *testing.T) {
	d := &recordingDoer{status: http.StatusOK, body: ticketJSON("t-1", domain.StatusInProgress)}
	c := newTestClient(d)

	_, err := c.Comment(context.Background(), "t-1", "still waiting on parts")
	require.NoError(t, err)

	assert.Equal(t, "/api/tickets/t-1/comments", d.lastPath)
	assert.JSONEq(t, `{"message":"still waiting on parts"}`, string(d.lastBody))
}

func TestAssign(t *testing.T) {
	d := &recordingDoer{status: http.StatusOK, body: ticketJSON("t-1", domain.StatusInProgress)}
	c := newTestClient(d)

	_, err := c.Assign(context.Background(), "t-1", "tech-9")
	require.NoError(t, err)

	assert.Equal(t, "/api/tickets/t-1/assign", d.lastPath)
	assert.Equal(t, "technicianId=tech-9", d.lastQuery)
}

func TestListEndpoints(t *testing.T) {
	body := "[" + ticketJSON("t-1", domain.StatusOpen) + "," + ticketJSON("t-2", domain.StatusOpen) + "]"

	tests := []struct {
		name     string
		call     func(*Client) ([]domain.Ticket, error)
		wantPath string
	}{
		{"mine", func(c *Client) ([]domain.Ticket, error) { return c.Mine(context.Background()) }, "/api/tickets/mine"},
		{"technician", func(c *Client) ([]domain.Ticket, error) { return c.ForTechnician(context.Background()) }, "/api/tickets/technician"},
		{"open", func(c *Client) ([]domain.Ticket, error) { return c.Open(context.Background()) }, "/api/tickets/open"},
		{"unassigned", func(c *Client) ([]domain.Ticket, error) { return c.Unassigned(context.Background()) }, "/api/tickets/unassigned"},
		{"all", func(c *Client) ([]domain.Ticket, error) { return c.All(context.Background()) }, "/api/tickets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDoer{status: http.StatusOK, body: body}
			c := newTestClient(d)

			got, err := tt.call(c)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "t-1", got[0].ID)
			assert.Equal(t, http.MethodGet, d.lastMethod)
			assert.Equal(t, tt.wantPath, d.lastPath)
		})
	}
}

func TestByStatus(t *testing.T) {
	d := &recordingDoer{status: http.StatusOK, body: "[]"}
	c := newTestClient(d)

	got, err := c.ByStatus(context.Background(), domain.StatusDone)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "status=DONE", d.lastQuery)

	_, err = c.ByStatus(context.Background(), "WHATEVER")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 1, d.calls)
}

func TestStats(t *testing.T) {
	d := &recordingDoer{status: http.StatusOK, body: `{"open":3,"inProgress":2,"done":7,"cancelled":1}`}
	c := newTestClient(d)

	got, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Stats{Open: 3, InProgress: 2, Done: 7, Cancelled: 1}, got)
	assert.Equal(t, "/api/tickets/stats", d.lastPath)
}

func TestErrorResponsesCarrySentinels(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		d := &recordingDoer{status: tt.status, body: `{"code":"X","message":"nope"}`}
		c := newTestClient(d)

		_, err := c.Take(context.Background(), "t-404")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}
}
