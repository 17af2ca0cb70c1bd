// Package ticket is the typed REST client for the ticket API. Every call
// goes through the authorized HTTP client, so the bearer-token and refresh
// protocol apply uniformly.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/YagoMoreiraDev/projeto-helpdesk/domain"
	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
	"github.com/YagoMoreiraDev/projeto-helpdesk/httpclient"
	"github.com/YagoMoreiraDev/projeto-helpdesk/validator"
)

const basePath = "/api/tickets"

// CreateRequest opens a new ticket.
type CreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"required,max=4000"`
	Priority    string `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
}

// CommentRequest adds a comment to a ticket's history.
type CommentRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// StatusChangeRequest moves a ticket to a new status.
type StatusChangeRequest struct {
	NewStatus string `json:"newStatus" validate:"required,oneof=OPEN IN_PROGRESS DONE CANCELLED"`
	Detail    string `json:"detail,omitempty" validate:"max=2000"`
}

// Stats is the per-status ticket count summary.
type Stats struct {
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
	Cancelled  int `json:"cancelled"`
}

// Client calls the ticket endpoints.
type Client struct {
	api     httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a ticket API client. The Doer is expected to be the
// authorized (and usually breaker-wrapped) HTTP client.
func NewClient(api httpclient.Doer, baseURL string, log *slog.Logger) *Client {
	return &Client{api: api, baseURL: baseURL, logger: log}
}

// Create opens a new ticket for the authenticated user.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*domain.Ticket, error) {
	if err := validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	var out domain.Ticket
	if err := c.do(ctx, http.MethodPost, basePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Take claims an unassigned ticket for the authenticated technician.
func (c *Client) Take(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var out domain.Ticket
	if err := c.do(ctx, http.MethodPost, basePath+"/"+url.PathEscape(ticketID)+"/take", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comment appends a comment to the ticket's event history.
func (c *Client) Comment(ctx context.Context, ticketID, message string) (*domain.Ticket, error) {
	req := CommentRequest{Message: message}
	if err := validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	var out domain.Ticket
	if err := c.do(ctx, http.MethodPost, basePath+"/"+url.PathEscape(ticketID)+"/comments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangeStatus moves the ticket to a new status with an optional detail.
func (c *Client) ChangeStatus(ctx context.Context, ticketID string, req StatusChangeRequest) (*domain.Ticket, error) {
	if err := validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	var out domain.Ticket
	if err := c.do(ctx, http.MethodPost, basePath+"/"+url.PathEscape(ticketID)+"/status", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Assign designates a technician for the ticket (admin operation).
func (c *Client) Assign(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error) {
	path := fmt.Sprintf("%s/%s/assign?technicianId=%s",
		basePath, url.PathEscape(ticketID), url.QueryEscape(technicianID))
	var out domain.Ticket
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel cancels the ticket with an optional detail message.
func (c *Client) Cancel(ctx context.Context, ticketID, detail string) (*domain.Ticket, error) {
	body := map[string]string{"detail": detail}
	var out domain.Ticket
	if err := c.do(ctx, http.MethodPost, basePath+"/"+url.PathEscape(ticketID)+"/cancel", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mine lists the authenticated user's own tickets.
func (c *Client) Mine(ctx context.Context) ([]domain.Ticket, error) {
	return c.list(ctx, basePath+"/mine")
}

// ForTechnician lists tickets assigned to the authenticated technician.
func (c *Client) ForTechnician(ctx context.Context) ([]domain.Ticket, error) {
	return c.list(ctx, basePath+"/technician")
}

// Open lists all open tickets.
func (c *Client) Open(ctx context.Context) ([]domain.Ticket, error) {
	return c.list(ctx, basePath+"/open")
}

// Unassigned lists tickets with no technician.
func (c *Client) Unassigned(ctx context.Context) ([]domain.Ticket, error) {
	return c.list(ctx, basePath+"/unassigned")
}

// All lists every ticket (admin view).
func (c *Client) All(ctx context.Context) ([]domain.Ticket, error) {
	return c.list(ctx, basePath)
}

// ByStatus lists tickets in the given transport-level status.
func (c *Client) ByStatus(ctx context.Context, status string) ([]domain.Ticket, error) {
	if !domain.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", apperrors.ErrInvalidInput, status)
	}
	return c.list(ctx, basePath+"?status="+url.QueryEscape(status))
}

// Stats returns the per-status ticket counts.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, basePath+"/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) list(ctx context.Context, path string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do issues one JSON request and decodes the response into out (when out
// is non-nil). Non-2xx responses become APIErrors carrying the matching
// sentinel.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.FromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
