package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Event kinds stored in body_events.kind.
const (
	KindCreated   = "created"
	KindDestroyed = "destroyed"
	KindEmptied   = "emptied"
)

// BodyEvent is one row of the body journal.
type BodyEvent struct {
	Frame     int
	Kind      string
	Handle    uint64
	Tag       uint32
	Particles int
	Cause     string // emptied events only
}

// RunSummary is written when a run ends.
type RunSummary struct {
	Frames        int
	BodiesCreated int
	BodiesExpired int
	BodiesEmptied int
	LiveBodies    int
	Errors        int
}

// JournalRepo records runs and their body events.
type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// StartRun inserts a run row and returns its id.
func (r *JournalRepo) StartRun(ctx context.Context, scene, fingerprint string) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO runs (scene, fingerprint) VALUES ($1, $2) RETURNING id`,
		scene, fingerprint,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counters of a run.
func (r *JournalRepo) FinishRun(ctx context.Context, runID int64, s RunSummary) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE runs SET finished_at = $2, frames = $3, bodies_created = $4,
		        bodies_expired = $5, bodies_emptied = $6, live_bodies = $7, errors = $8
		  WHERE id = $1`,
		runID, time.Now(), s.Frames, s.BodiesCreated, s.BodiesExpired, s.BodiesEmptied, s.LiveBodies, s.Errors,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("finish run %d: no such run", runID)
	}
	return nil
}

// WriteEvents copies a batch of events for runID in a single transaction.
func (r *JournalRepo) WriteEvents(ctx context.Context, runID int64, events []BodyEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"body_events"},
		[]string{"run_id", "frame", "kind", "handle", "tag", "particles", "cause"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			return eventRow(runID, events[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("journal copy: %w", err)
	}
	if int(n) != len(events) {
		return fmt.Errorf("journal copy: wrote %d of %d rows", n, len(events))
	}
	return tx.Commit(ctx)
}

// CountEvents returns how many events of kind were journaled for runID.
func (r *JournalRepo) CountEvents(ctx context.Context, runID int64, kind string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM body_events WHERE run_id = $1 AND kind = $2`,
		runID, kind,
	).Scan(&n)
	return n, err
}

// eventRow orders the columns as WriteEvents declares them. Handles are
// stored as BIGINT, so the top bit wraps into the sign.
func eventRow(runID int64, e BodyEvent) []any {
	return []any{runID, int32(e.Frame), e.Kind, int64(e.Handle), int64(e.Tag), int32(e.Particles), e.Cause}
}
