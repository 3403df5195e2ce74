// Package repository implements the persistent store for gigs, gents and
// availability records. It uses pgx directly (no ORM) for transparency and
// performance; an in-memory implementation in memory.go backs tests and
// database-free demo runs.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/giggle-hq/giggle/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownGent is returned when a roster or availability write targets a
// gent identity that does not exist. Distinct from ErrNotFound so callers
// can tell a bad URL from a bad payload.
var ErrUnknownGent = errors.New("unknown gent")

// Postgres is the pgx-backed store.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres constructs a Postgres store over the given pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// FindGent returns a single gent or ErrNotFound.
func (s *Postgres) FindGent(ctx context.Context, id string) (*model.Gent, error) {
	var g model.Gent
	err := s.db.QueryRow(ctx,
		`SELECT id, name, COALESCE(username, '') FROM gents WHERE id = $1`,
		id,
	).Scan(&g.ID, &g.Name, &g.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find gent: %w", err)
	}
	return &g, nil
}

// AllGents returns every gent ordered by display name.
func (s *Postgres) AllGents(ctx context.Context) ([]model.Gent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, COALESCE(username, '') FROM gents ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list gents: %w", err)
	}
	defer rows.Close()

	var gents []model.Gent
	for rows.Next() {
		var g model.Gent
		if err := rows.Scan(&g.ID, &g.Name, &g.Username); err != nil {
			return nil, fmt.Errorf("scan gent: %w", err)
		}
		gents = append(gents, g)
	}
	return gents, rows.Err()
}

// CreateGent inserts a new gent. Used by seeding.
func (s *Postgres) CreateGent(ctx context.Context, g *model.Gent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO gents (id, name, username) VALUES ($1, $2, NULLIF($3, ''))`,
		g.ID, g.Name, g.Username,
	)
	if err != nil {
		return fmt.Errorf("insert gent: %w", err)
	}
	return nil
}

// FindGig returns a single gig with its roster, or ErrNotFound.
func (s *Postgres) FindGig(ctx context.Context, id string) (*model.Gig, error) {
	var g model.Gig
	err := s.db.QueryRow(ctx,
		`SELECT id, title, date, fee, notes, phase FROM gigs WHERE id = $1`,
		id,
	).Scan(&g.ID, &g.Title, &g.Date, &g.Fee, &g.Notes, &g.Phase)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find gig: %w", err)
	}

	rosters, err := s.rosters(ctx, []string{g.ID})
	if err != nil {
		return nil, err
	}
	g.GentIDs = rosters[g.ID]
	return &g, nil
}

// ListGigs returns all gigs ordered by date then title, rosters included.
func (s *Postgres) ListGigs(ctx context.Context) ([]model.Gig, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, date, fee, notes, phase FROM gigs ORDER BY date, title`,
	)
	if err != nil {
		return nil, fmt.Errorf("list gigs: %w", err)
	}
	return s.scanGigs(ctx, rows)
}

// ListGigsForGent returns the gigs visible to one gent: every planning gig
// plus the booked/completed gigs the gent is assigned to.
func (s *Postgres) ListGigsForGent(ctx context.Context, gentID string) ([]model.Gig, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT g.id, g.title, g.date, g.fee, g.notes, g.phase
		 FROM gigs g
		 LEFT JOIN gig_gents gg ON gg.gig_id = g.id
		 WHERE g.phase = $1 OR gg.gent_id = $2
		 ORDER BY g.date, g.title`,
		model.PhasePlanning, gentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list gigs for gent: %w", err)
	}
	return s.scanGigs(ctx, rows)
}

func (s *Postgres) scanGigs(ctx context.Context, rows pgx.Rows) ([]model.Gig, error) {
	defer rows.Close()

	var gigs []model.Gig
	var ids []string
	for rows.Next() {
		var g model.Gig
		if err := rows.Scan(&g.ID, &g.Title, &g.Date, &g.Fee, &g.Notes, &g.Phase); err != nil {
			return nil, fmt.Errorf("scan gig: %w", err)
		}
		gigs = append(gigs, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rosters, err := s.rosters(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range gigs {
		gigs[i].GentIDs = rosters[gigs[i].ID]
	}
	return gigs, nil
}

// rosters loads the assigned-gent sets for the given gig ids.
func (s *Postgres) rosters(ctx context.Context, gigIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(gigIDs))
	if len(gigIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT gig_id, gent_id FROM gig_gents WHERE gig_id = ANY($1) ORDER BY gent_id`,
		gigIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load rosters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gigID, gentID string
		if err := rows.Scan(&gigID, &gentID); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		out[gigID] = append(out[gigID], gentID)
	}
	return out, rows.Err()
}

// CreateGig inserts a gig row. Roster membership is written separately via
// SaveRoster so that every roster write goes through the same path.
func (s *Postgres) CreateGig(ctx context.Context, g *model.Gig) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO gigs (id, title, date, fee, notes, phase)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.Title, g.Date, g.Fee, g.Notes, g.Phase,
	)
	if err != nil {
		return fmt.Errorf("insert gig: %w", err)
	}
	return nil
}

// UpdateGig rewrites a gig's scalar fields. The roster is not touched here.
func (s *Postgres) UpdateGig(ctx context.Context, g *model.Gig) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE gigs SET title = $2, date = $3, fee = $4, notes = $5, phase = $6
		 WHERE id = $1`,
		g.ID, g.Title, g.Date, g.Fee, g.Notes, g.Phase,
	)
	if err != nil {
		return fmt.Errorf("update gig: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGig removes a gig; roster and availability rows go with it via
// ON DELETE CASCADE.
func (s *Postgres) DeleteGig(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM gigs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete gig: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRoster transactionally replaces a gig's assigned-gent set.
func (s *Postgres) SaveRoster(ctx context.Context, gigID string, gentIDs []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM gig_gents WHERE gig_id = $1`, gigID); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	for _, gentID := range gentIDs {
		if _, err = tx.Exec(ctx,
			`INSERT INTO gig_gents (gig_id, gent_id) VALUES ($1, $2)`,
			gigID, gentID,
		); err != nil {
			return fmt.Errorf("insert roster row: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit roster: %w", err)
	}
	return nil
}

// GetAvailability returns the recorded status for one (gig, gent) pair.
// The second return is false when no record exists; absence reads as
// no_reply at the service layer.
func (s *Postgres) GetAvailability(ctx context.Context, gigID, gentID string) (model.AvailabilityStatus, bool, error) {
	var status model.AvailabilityStatus
	err := s.db.QueryRow(ctx,
		`SELECT status FROM availability WHERE gig_id = $1 AND gent_id = $2`,
		gigID, gentID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StatusNoReply, false, nil
		}
		return "", false, fmt.Errorf("get availability: %w", err)
	}
	return status, true, nil
}

// UpsertAvailability creates or overwrites the record for one pair.
func (s *Postgres) UpsertAvailability(ctx context.Context, gigID, gentID string, status model.AvailabilityStatus) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO availability (gig_id, gent_id, status) VALUES ($1, $2, $3)
		 ON CONFLICT (gig_id, gent_id) DO UPDATE SET status = EXCLUDED.status`,
		gigID, gentID, status,
	)
	if err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}

// AvailabilityForGig returns the recorded statuses for one gig keyed by
// gent id. Gents without a record are simply absent from the map.
func (s *Postgres) AvailabilityForGig(ctx context.Context, gigID string) (map[string]model.AvailabilityStatus, error) {
	rows, err := s.db.Query(ctx,
		`SELECT gent_id, status FROM availability WHERE gig_id = $1`,
		gigID,
	)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.AvailabilityStatus)
	for rows.Next() {
		var gentID string
		var status model.AvailabilityStatus
		if err := rows.Scan(&gentID, &status); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		out[gentID] = status
	}
	return out, rows.Err()
}
