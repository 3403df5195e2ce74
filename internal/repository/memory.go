package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/giggle-hq/giggle/internal/model"
)

// Memory is an in-memory store with the same behavior as Postgres. It backs
// the test suite and DB_DRIVER=memory demo runs, where the service works
// without any database at hand.
type Memory struct {
	mu    sync.RWMutex
	gents map[string]model.Gent
	gigs  map[string]model.Gig
	avail map[string]map[string]model.AvailabilityStatus // gig id -> gent id -> status
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		gents: make(map[string]model.Gent),
		gigs:  make(map[string]model.Gig),
		avail: make(map[string]map[string]model.AvailabilityStatus),
	}
}

// FindGent returns a single gent or ErrNotFound.
func (s *Memory) FindGent(_ context.Context, id string) (*model.Gent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

// AllGents returns every gent ordered by display name.
func (s *Memory) AllGents(_ context.Context) ([]model.Gent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gents := make([]model.Gent, 0, len(s.gents))
	for _, g := range s.gents {
		gents = append(gents, g)
	}
	sort.Slice(gents, func(i, j int) bool { return gents[i].Name < gents[j].Name })
	return gents, nil
}

// CreateGent inserts a new gent.
func (s *Memory) CreateGent(_ context.Context, g *model.Gent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gents[g.ID] = *g
	return nil
}

// FindGig returns a single gig with its roster, or ErrNotFound.
func (s *Memory) FindGig(_ context.Context, id string) (*model.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gigs[id]
	if !ok {
		return nil, ErrNotFound
	}
	g.GentIDs = append([]string(nil), g.GentIDs...)
	return &g, nil
}

// ListGigs returns all gigs ordered by date then title.
func (s *Memory) ListGigs(_ context.Context) ([]model.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedGigs(func(model.Gig) bool { return true }), nil
}

// ListGigsForGent returns every planning gig plus the booked/completed gigs
// the gent is assigned to.
func (s *Memory) ListGigsForGent(_ context.Context, gentID string) ([]model.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedGigs(func(g model.Gig) bool {
		return g.Phase == model.PhasePlanning || g.HasGent(gentID)
	}), nil
}

// sortedGigs is called with at least a read lock held.
func (s *Memory) sortedGigs(keep func(model.Gig) bool) []model.Gig {
	var gigs []model.Gig
	for _, g := range s.gigs {
		if !keep(g) {
			continue
		}
		g.GentIDs = append([]string(nil), g.GentIDs...)
		gigs = append(gigs, g)
	}
	sort.Slice(gigs, func(i, j int) bool {
		if !gigs[i].Date.Equal(gigs[j].Date) {
			return gigs[i].Date.Before(gigs[j].Date)
		}
		return gigs[i].Title < gigs[j].Title
	})
	return gigs
}

// CreateGig inserts a gig row without roster membership.
func (s *Memory) CreateGig(_ context.Context, g *model.Gig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *g
	stored.GentIDs = nil
	s.gigs[g.ID] = stored
	return nil
}

// UpdateGig rewrites a gig's scalar fields, leaving the roster untouched.
func (s *Memory) UpdateGig(_ context.Context, g *model.Gig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.gigs[g.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Title = g.Title
	existing.Date = g.Date
	existing.Fee = g.Fee
	existing.Notes = g.Notes
	existing.Phase = g.Phase
	s.gigs[g.ID] = existing
	return nil
}

// DeleteGig removes a gig along with its roster and availability records.
func (s *Memory) DeleteGig(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gigs[id]; !ok {
		return ErrNotFound
	}
	delete(s.gigs, id)
	delete(s.avail, id)
	return nil
}

// SaveRoster replaces a gig's assigned-gent set.
func (s *Memory) SaveRoster(_ context.Context, gigID string, gentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[gigID]
	if !ok {
		return ErrNotFound
	}
	g.GentIDs = append([]string(nil), gentIDs...)
	sort.Strings(g.GentIDs)
	s.gigs[gigID] = g
	return nil
}

// GetAvailability returns the recorded status for one pair; false when no
// record exists.
func (s *Memory) GetAvailability(_ context.Context, gigID, gentID string) (model.AvailabilityStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.avail[gigID][gentID]
	if !ok {
		return model.StatusNoReply, false, nil
	}
	return st, true, nil
}

// UpsertAvailability creates or overwrites the record for one pair.
func (s *Memory) UpsertAvailability(_ context.Context, gigID, gentID string, status model.AvailabilityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byGent, ok := s.avail[gigID]
	if !ok {
		byGent = make(map[string]model.AvailabilityStatus)
		s.avail[gigID] = byGent
	}
	byGent[gentID] = status
	return nil
}

// AvailabilityForGig returns the recorded statuses for one gig.
func (s *Memory) AvailabilityForGig(_ context.Context, gigID string) (map[string]model.AvailabilityStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.AvailabilityStatus, len(s.avail[gigID]))
	for gentID, st := range s.avail[gigID] {
		out[gentID] = st
	}
	return out, nil
}
