// Package model defines the core domain types for the gig booking system.
package model

import "time"

// Phase is a gig's lifecycle stage.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseBooked    Phase = "booked"
	PhaseCompleted Phase = "completed"
)

// Valid reports whether p is a recognised phase.
func (p Phase) Valid() bool {
	switch p {
	case PhasePlanning, PhaseBooked, PhaseCompleted:
		return true
	}
	return false
}

// AvailabilityStatus is a gent's declared or assigned relationship to a gig.
type AvailabilityStatus string

const (
	StatusNoReply     AvailabilityStatus = "no_reply"
	StatusAvailable   AvailabilityStatus = "available"
	StatusUnavailable AvailabilityStatus = "unavailable"
	StatusAssigned    AvailabilityStatus = "assigned"
)

// Valid reports whether s is a recognised availability status.
func (s AvailabilityStatus) Valid() bool {
	switch s {
	case StatusNoReply, StatusAvailable, StatusUnavailable, StatusAssigned:
		return true
	}
	return false
}

// ActorRole is the permission class of a requester.
type ActorRole string

const (
	RoleManager ActorRole = "manager"
	RoleGent    ActorRole = "gent"
)

// Valid reports whether r is a recognised actor role.
func (r ActorRole) Valid() bool {
	return r == RoleManager || r == RoleGent
}

// Gent represents a performer that can be assigned to gigs.
type Gent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
}

// Gig represents a bookable event with a roster of assigned gents.
// GentIDs is the roster; it is mutated only through the service layer's
// reconciliation so that roster membership and the availability ledger
// never disagree.
type Gig struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Date    time.Time `json:"date"`
	Fee     float64   `json:"fee"`
	Notes   string    `json:"notes"`
	Phase   Phase     `json:"phase"`
	GentIDs []string  `json:"gent_ids"`
}

// HasGent reports whether gentID is on the gig's roster.
func (g *Gig) HasGent(gentID string) bool {
	for _, id := range g.GentIDs {
		if id == gentID {
			return true
		}
	}
	return false
}

// AvailabilityEntry is one (gent, status) pair in a gig's availability view.
type AvailabilityEntry struct {
	GentID string             `json:"gent_id"`
	Status AvailabilityStatus `json:"status"`
}

// CreateGigRequest is the payload for creating a new gig.
type CreateGigRequest struct {
	Title   string   `json:"title"`
	Date    string   `json:"date"`
	Fee     float64  `json:"fee"`
	Notes   string   `json:"notes"`
	Phase   Phase    `json:"phase"`
	GentIDs []string `json:"gent_ids"`
}

// UpdateGigRequest is the payload for a partial gig update. Nil fields are
// left untouched; a non-nil GentIDs replaces the whole roster.
type UpdateGigRequest struct {
	Title   *string   `json:"title"`
	Date    *string   `json:"date"`
	Fee     *float64  `json:"fee"`
	Notes   *string   `json:"notes"`
	Phase   *Phase    `json:"phase"`
	GentIDs *[]string `json:"gent_ids"`
}

// SetAvailabilityRequest is the payload for recording a gent's status on a gig.
type SetAvailabilityRequest struct {
	GentID string             `json:"gent_id"`
	Status AvailabilityStatus `json:"status"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DateFormat is the wire format for gig dates.
const DateFormat = "2006-01-02"
