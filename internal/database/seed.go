package database

import (
	"context"
	"fmt"
	"time"

	"github.com/giggle-hq/giggle/internal/model"
	"github.com/google/uuid"
)

// seedStore is the slice of the store that seeding needs. Both the pgx and
// the in-memory repository satisfy it.
type seedStore interface {
	AllGents(ctx context.Context) ([]model.Gent, error)
	CreateGent(ctx context.Context, g *model.Gent) error
	CreateGig(ctx context.Context, g *model.Gig) error
	SaveRoster(ctx context.Context, gigID string, gentIDs []string) error
	UpsertAvailability(ctx context.Context, gigID, gentID string, status model.AvailabilityStatus) error
}

// Seed populates an empty store with demo data. A store that already has
// gents is left alone. Roster members get assigned ledger entries so the
// roster and the availability ledger agree from the start.
func Seed(ctx context.Context, store seedStore) error {
	existing, err := store.AllGents(ctx)
	if err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	gents := []model.Gent{
		{ID: uuid.New().String(), Name: "Alice Archer", Username: "alice"},
		{ID: uuid.New().String(), Name: "Bobby Banks", Username: "bobby"},
		{ID: uuid.New().String(), Name: "Charlie Chen", Username: "charlie"},
		{ID: uuid.New().String(), Name: "Dina Diaz", Username: "dina"},
	}
	for i := range gents {
		if err := store.CreateGent(ctx, &gents[i]); err != nil {
			return fmt.Errorf("seed gent: %w", err)
		}
	}
	a, b, c, d := gents[0].ID, gents[1].ID, gents[2].ID, gents[3].ID

	gigs := []struct {
		gig    model.Gig
		roster []string
	}{
		{
			gig: model.Gig{
				ID: uuid.New().String(), Title: "Summer Gala",
				Date: date(2025, 8, 24), Fee: 1200, Notes: "Black tie.",
				Phase: model.PhaseBooked,
			},
			roster: []string{a, c},
		},
		{
			gig: model.Gig{
				ID: uuid.New().String(), Title: "Park Festival",
				Date: date(2025, 9, 5), Fee: 800, Notes: "Outdoor stage.",
				Phase: model.PhasePlanning,
			},
			roster: []string{b, d},
		},
		{
			gig: model.Gig{
				ID: uuid.New().String(), Title: "Private Party",
				Date: date(2025, 9, 12), Fee: 1500,
				Phase: model.PhaseCompleted,
			},
			roster: []string{a, b, d},
		},
	}
	for _, entry := range gigs {
		if err := store.CreateGig(ctx, &entry.gig); err != nil {
			return fmt.Errorf("seed gig: %w", err)
		}
		if err := store.SaveRoster(ctx, entry.gig.ID, entry.roster); err != nil {
			return fmt.Errorf("seed roster: %w", err)
		}
		for _, gentID := range entry.roster {
			if err := store.UpsertAvailability(ctx, entry.gig.ID, gentID, model.StatusAssigned); err != nil {
				return fmt.Errorf("seed availability: %w", err)
			}
		}
	}
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
