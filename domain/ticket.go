package domain

import (
	"time"
)

// Ticket status constants (transport-level, as emitted by the backend).
const (
	StatusOpen       = "OPEN"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusCancelled  = "CANCELLED"
)

// Ticket priority constants.
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Ticket represents a unit of requested support work. Tickets are owned by
// the backend; the client only moves them between snapshots and views.
type Ticket struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	RequesterID   string     `json:"requesterId,omitempty"`
	RequesterName string     `json:"requesterName,omitempty"`
	AssigneeID    string     `json:"assigneeId,omitempty"`
	AssigneeName  string     `json:"assigneeName,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

// Assigned reports whether the ticket has a technician assigned.
func (t Ticket) Assigned() bool {
	return t.AssigneeID != ""
}

// Closed reports whether the ticket reached a terminal status.
func (t Ticket) Closed() bool {
	return t.Status == StatusDone || t.Status == StatusCancelled
}

// ValidStatuses returns the set of valid ticket statuses.
func ValidStatuses() []string {
	return []string{StatusOpen, StatusInProgress, StatusDone, StatusCancelled}
}

// IsValidStatus checks whether the given string is a valid ticket status.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// ValidPriorities returns the set of valid ticket priorities.
func ValidPriorities() []string {
	return []string{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValidPriority checks whether the given string is a valid ticket priority.
func IsValidPriority(p string) bool {
	for _, v := range ValidPriorities() {
		if v == p {
			return true
		}
	}
	return false
}
