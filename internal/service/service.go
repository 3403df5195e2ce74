// Package service implements the booking logic: availability writes, the
// reconciliation that keeps roster membership and the availability ledger in
// agreement, and the orchestration between HTTP handlers, the store and the
// realtime notifier.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/giggle-hq/giggle/internal/model"
	"github.com/giggle-hq/giggle/internal/permission"
	"github.com/giggle-hq/giggle/internal/repository"
	"github.com/google/uuid"
)

// Store is the narrow data-access surface the service depends on. Both the
// pgx-backed and the in-memory repository implement it.
type Store interface {
	FindGent(ctx context.Context, id string) (*model.Gent, error)
	AllGents(ctx context.Context) ([]model.Gent, error)

	FindGig(ctx context.Context, id string) (*model.Gig, error)
	ListGigs(ctx context.Context) ([]model.Gig, error)
	ListGigsForGent(ctx context.Context, gentID string) ([]model.Gig, error)
	CreateGig(ctx context.Context, g *model.Gig) error
	UpdateGig(ctx context.Context, g *model.Gig) error
	DeleteGig(ctx context.Context, id string) error
	SaveRoster(ctx context.Context, gigID string, gentIDs []string) error

	GetAvailability(ctx context.Context, gigID, gentID string) (model.AvailabilityStatus, bool, error)
	UpsertAvailability(ctx context.Context, gigID, gentID string, status model.AvailabilityStatus) error
	AvailabilityForGig(ctx context.Context, gigID string) (map[string]model.AvailabilityStatus, error)
}

// Notifier pushes change events to the gents a change affects.
type Notifier interface {
	GigsChanged(gigID string, gentIDs ...string)
}

// BookingService orchestrates gig, roster and availability operations.
//
// Every write that can touch a gig's roster runs under that gig's lock, so
// the ledger-write-then-reconcile sequence is one critical section per gig.
// Writes to different gigs proceed in parallel.
type BookingService struct {
	store    Store
	notifier Notifier

	mu       sync.Mutex
	gigLocks map[string]*sync.Mutex
}

// NewBookingService constructs a BookingService with its dependencies.
func NewBookingService(store Store, notifier Notifier) *BookingService {
	return &BookingService{
		store:    store,
		notifier: notifier,
		gigLocks: make(map[string]*sync.Mutex),
	}
}

// lockGig serialises roster-affecting writes per gig. The returned func
// releases the lock.
func (s *BookingService) lockGig(gigID string) func() {
	s.mu.Lock()
	l, ok := s.gigLocks[gigID]
	if !ok {
		l = &sync.Mutex{}
		s.gigLocks[gigID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// ─── Gents ────────────────────────────────────────────────────────────────────

// ListGents returns all gents ordered by display name.
func (s *BookingService) ListGents(ctx context.Context) ([]model.Gent, error) {
	return s.store.AllGents(ctx)
}

// GetGent returns a single gent by ID.
func (s *BookingService) GetGent(ctx context.Context, id string) (*model.Gent, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}
	return s.store.FindGent(ctx, id)
}

// ─── Gigs ─────────────────────────────────────────────────────────────────────

// ListGigs returns the manager view when gentID is empty, otherwise the
// gent view: all planning gigs plus the booked/completed gigs the gent is
// assigned to. An unknown gentID yields repository.ErrNotFound.
func (s *BookingService) ListGigs(ctx context.Context, gentID string) ([]model.Gig, error) {
	if gentID == "" {
		return s.store.ListGigs(ctx)
	}
	if _, err := s.store.FindGent(ctx, gentID); err != nil {
		return nil, err
	}
	return s.store.ListGigsForGent(ctx, gentID)
}

// GetGig returns a single gig by ID.
func (s *BookingService) GetGig(ctx context.Context, id string) (*model.Gig, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}
	return s.store.FindGig(ctx, id)
}

// CreateGig validates the request and creates a gig. Gents named in the
// initial roster are recorded as assigned in the availability ledger, so the
// roster/ledger invariant holds from the gig's first moment.
func (s *BookingService) CreateGig(ctx context.Context, req model.CreateGigRequest) (*model.Gig, error) {
	gig := &model.Gig{
		ID:    uuid.New().String(),
		Title: strings.TrimSpace(req.Title),
		Fee:   req.Fee,
		Notes: req.Notes,
		Phase: req.Phase,
	}
	if gig.Title == "" {
		gig.Title = "New Gig"
	}
	if gig.Phase == "" {
		gig.Phase = model.PhasePlanning
	}
	if !gig.Phase.Valid() {
		return nil, fmt.Errorf("invalid phase %q", gig.Phase)
	}

	var err error
	gig.Date, err = parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	roster := dedupe(req.GentIDs)
	if err := s.ensureGentsExist(ctx, roster); err != nil {
		return nil, err
	}

	if err := s.store.CreateGig(ctx, gig); err != nil {
		return nil, fmt.Errorf("create gig: %w", err)
	}
	if len(roster) > 0 {
		unlock := s.lockGig(gig.ID)
		defer unlock()

		// Fresh gig, so every touched ledger entry starts at no_reply.
		prev := make(map[string]model.AvailabilityStatus, len(roster))
		for _, gentID := range roster {
			prev[gentID] = model.StatusNoReply
		}

		var written []string
		for _, gentID := range roster {
			if err := s.store.UpsertAvailability(ctx, gig.ID, gentID, model.StatusAssigned); err != nil {
				s.restoreLedger(ctx, gig.ID, prev, written)
				return nil, fmt.Errorf("record assignment: %w", err)
			}
			written = append(written, gentID)
		}
		if err := s.store.SaveRoster(ctx, gig.ID, roster); err != nil {
			s.restoreLedger(ctx, gig.ID, prev, written)
			return nil, fmt.Errorf("save roster: %w", err)
		}
		gig.GentIDs = roster
		s.notifier.GigsChanged(gig.ID, roster...)
	}
	return gig, nil
}

// UpdateGig applies a partial update. A non-nil GentIDs replaces the whole
// roster: it is treated as a batch of per-gent reconciliations, so the
// availability ledger is rewritten for every gent added or removed and each
// of them is notified.
func (s *BookingService) UpdateGig(ctx context.Context, gigID string, req model.UpdateGigRequest) (*model.Gig, error) {
	unlock := s.lockGig(gigID)
	defer unlock()

	gig, err := s.store.FindGig(ctx, gigID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		gig.Title = strings.TrimSpace(*req.Title)
	}
	if req.Date != nil {
		gig.Date, err = parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
	}
	if req.Fee != nil {
		gig.Fee = *req.Fee
	}
	if req.Notes != nil {
		gig.Notes = *req.Notes
	}
	if req.Phase != nil {
		if !req.Phase.Valid() {
			return nil, fmt.Errorf("invalid phase %q", *req.Phase)
		}
		gig.Phase = *req.Phase
	}

	var affected []string
	if req.GentIDs != nil {
		newRoster := dedupe(*req.GentIDs)
		if err := s.ensureGentsExist(ctx, newRoster); err != nil {
			return nil, err
		}
		added, removed := diffRoster(gig.GentIDs, newRoster)

		// Snapshot the ledger for every gent the replace touches so a
		// failed roster write can be compensated and membership and
		// status never end up in disagreement.
		prev := make(map[string]model.AvailabilityStatus, len(added)+len(removed))
		for _, gentID := range append(append([]string(nil), added...), removed...) {
			st, _, err := s.store.GetAvailability(ctx, gigID, gentID)
			if err != nil {
				return nil, err
			}
			prev[gentID] = st
		}

		// Ledger first: an added gent is assigned, a removed gent
		// falls back to no_reply (the system only knows the manager
		// unassigned them, not that they declined).
		var written []string
		for _, gentID := range added {
			if err := s.store.UpsertAvailability(ctx, gigID, gentID, model.StatusAssigned); err != nil {
				s.restoreLedger(ctx, gigID, prev, written)
				return nil, fmt.Errorf("record assignment: %w", err)
			}
			written = append(written, gentID)
		}
		for _, gentID := range removed {
			if err := s.store.UpsertAvailability(ctx, gigID, gentID, model.StatusNoReply); err != nil {
				s.restoreLedger(ctx, gigID, prev, written)
				return nil, fmt.Errorf("clear assignment: %w", err)
			}
			written = append(written, gentID)
		}
		if err := s.store.SaveRoster(ctx, gigID, newRoster); err != nil {
			s.restoreLedger(ctx, gigID, prev, written)
			return nil, fmt.Errorf("save roster: %w", err)
		}
		gig.GentIDs = newRoster
		affected = append(added, removed...)
	}

	if err := s.store.UpdateGig(ctx, gig); err != nil {
		return nil, fmt.Errorf("update gig: %w", err)
	}
	if len(affected) > 0 {
		s.notifier.GigsChanged(gigID, affected...)
	}
	return gig, nil
}

// DeleteGig removes a gig. Manager only; roster members at deletion time
// are notified that their gig set changed.
func (s *BookingService) DeleteGig(ctx context.Context, gigID string, role model.ActorRole) error {
	if role != model.RoleManager {
		return fmt.Errorf("%w: only managers can delete gigs", permission.ErrForbidden)
	}

	unlock := s.lockGig(gigID)
	defer unlock()

	gig, err := s.store.FindGig(ctx, gigID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGig(ctx, gigID); err != nil {
		return err
	}

	// The gig is gone, so drop its lock entry; the map must not grow
	// with every gig ever deleted. A racing writer that already holds
	// the old mutex can only observe NotFound from here on.
	s.mu.Lock()
	delete(s.gigLocks, gigID)
	s.mu.Unlock()

	if len(gig.GentIDs) > 0 {
		s.notifier.GigsChanged(gigID, gig.GentIDs...)
	}
	return nil
}

// ─── Availability ─────────────────────────────────────────────────────────────

// GetAvailability returns one entry per known gent ordered by display name.
// Gents without a recorded reply show up as no_reply.
func (s *BookingService) GetAvailability(ctx context.Context, gigID string) ([]model.AvailabilityEntry, error) {
	if _, err := s.store.FindGig(ctx, gigID); err != nil {
		return nil, err
	}
	gents, err := s.store.AllGents(ctx)
	if err != nil {
		return nil, err
	}
	recorded, err := s.store.AvailabilityForGig(ctx, gigID)
	if err != nil {
		return nil, err
	}

	entries := make([]model.AvailabilityEntry, 0, len(gents))
	for _, g := range gents {
		status, ok := recorded[g.ID]
		if !ok {
			status = model.StatusNoReply
		}
		entries = append(entries, model.AvailabilityEntry{GentID: g.ID, Status: status})
	}
	return entries, nil
}

// SetAvailability records a gent's status for a gig and reconciles the
// gig's roster with it: assigned puts the gent on the roster, anything else
// takes them off. The permission gate runs before any state is touched; the
// whole write is serialised per gig so concurrent calls cannot leave the
// roster and the ledger in disagreement. When membership changes, the
// affected gent is notified.
func (s *BookingService) SetAvailability(ctx context.Context, gigID string, req model.SetAvailabilityRequest, role model.ActorRole, actorGentID string) (*model.AvailabilityEntry, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", req.Status)
	}

	unlock := s.lockGig(gigID)
	defer unlock()

	gig, err := s.store.FindGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if err := permission.Authorize(role, actorGentID, req.GentID, req.Status); err != nil {
		return nil, err
	}
	if _, err := s.store.FindGent(ctx, req.GentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("gent %s: %w", req.GentID, repository.ErrUnknownGent)
		}
		return nil, err
	}

	prev, _, err := s.store.GetAvailability(ctx, gigID, req.GentID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertAvailability(ctx, gigID, req.GentID, req.Status); err != nil {
		return nil, fmt.Errorf("upsert availability: %w", err)
	}

	newRoster, changed := reconcile(gig, req.GentID, req.Status)
	if changed {
		if err := s.store.SaveRoster(ctx, gigID, newRoster); err != nil {
			// Put the ledger back so membership and status stay in
			// agreement even when the roster write fails.
			s.restoreLedger(ctx, gigID, map[string]model.AvailabilityStatus{req.GentID: prev}, []string{req.GentID})
			return nil, fmt.Errorf("save roster: %w", err)
		}
		s.notifier.GigsChanged(gigID, req.GentID)
	}

	return &model.AvailabilityEntry{GentID: req.GentID, Status: req.Status}, nil
}

// reconcile computes the roster after a status write. Membership follows the
// ledger: a gent is on the roster exactly when their status is assigned.
func reconcile(gig *model.Gig, gentID string, status model.AvailabilityStatus) ([]string, bool) {
	wasMember := gig.HasGent(gentID)
	switch {
	case status == model.StatusAssigned && !wasMember:
		return append(append([]string(nil), gig.GentIDs...), gentID), true
	case status != model.StatusAssigned && wasMember:
		roster := make([]string, 0, len(gig.GentIDs))
		for _, id := range gig.GentIDs {
			if id != gentID {
				roster = append(roster, id)
			}
		}
		return roster, true
	}
	return gig.GentIDs, false
}

// restoreLedger rewrites the given gents' ledger entries to their prior
// values after a failed roster write, so membership and status stay in
// agreement. Best effort: a failing restore is logged, not surfaced, since
// the original error is already on its way to the caller.
func (s *BookingService) restoreLedger(ctx context.Context, gigID string, prev map[string]model.AvailabilityStatus, gentIDs []string) {
	for _, gentID := range gentIDs {
		if err := s.store.UpsertAvailability(ctx, gigID, gentID, prev[gentID]); err != nil {
			log.Printf("restore availability for gig %s gent %s failed: %v", gigID, gentID, err)
		}
	}
}

// ensureGentsExist rejects roster writes that reference unknown gents
// before anything is mutated.
func (s *BookingService) ensureGentsExist(ctx context.Context, gentIDs []string) error {
	for _, id := range gentIDs {
		if _, err := s.store.FindGent(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("gent %s: %w", id, repository.ErrUnknownGent)
			}
			return err
		}
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(model.DateFormat, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", raw)
	}
	return d, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// diffRoster returns the ids present only in next (added) and only in prev
// (removed).
func diffRoster(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
