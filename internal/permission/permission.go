// Package permission decides whether an actor may record a given
// availability status for a gent. It is a pure policy check: it mutates
// nothing and knows nothing about storage.
package permission

import (
	"errors"
	"fmt"

	"github.com/giggle-hq/giggle/internal/model"
)

// ErrForbidden is returned when the requested transition is not authorized
// for the requesting actor. The wrapped message carries the reason.
var ErrForbidden = errors.New("forbidden")

// Authorize checks the requested status write against the actor's role.
//
// Managers may set any status for any gent, including assigned. A gent may
// only report their own availability, and never place themselves into the
// assigned state.
func Authorize(role model.ActorRole, actorGentID, targetGentID string, status model.AvailabilityStatus) error {
	if role == model.RoleManager {
		return nil
	}
	if actorGentID == "" || actorGentID != targetGentID {
		return fmt.Errorf("%w: gents can only update their own availability", ErrForbidden)
	}
	if status == model.StatusAssigned {
		return fmt.Errorf("%w: only managers can assign", ErrForbidden)
	}
	return nil
}
