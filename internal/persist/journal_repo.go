package persist

import (
	"context"
	"fmt"
)

// TaskEvent is one task status transition.
type TaskEvent struct {
	TaskID     string
	ActorID    string
	Kind       string
	FromStatus string // empty on creation
	ToStatus   string
	SimTime    float64
	Tick       int64
}

// JournalRepo appends task transitions to task_journal, tagged with the run
// they belong to.
type JournalRepo struct {
	db    *DB
	runID string
}

func NewJournalRepo(db *DB, runID string) *JournalRepo {
	return &JournalRepo{db: db, runID: runID}
}

// RunID returns the run tag written with every row.
func (r *JournalRepo) RunID() string {
	return r.runID
}

// WriteTaskEvents atomically writes a batch of events in a single
// transaction.
func (r *JournalRepo) WriteTaskEvents(ctx context.Context, events []TaskEvent) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if _, err := tx.Exec(ctx,
			`INSERT INTO task_journal (run_id, task_id, actor_id, kind, from_status, to_status, sim_time, tick)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.runID, e.TaskID, e.ActorID, e.Kind, e.FromStatus, e.ToStatus, e.SimTime, e.Tick,
		); err != nil {
			return fmt.Errorf("journal insert %s: %w", e.TaskID, err)
		}
	}

	return tx.Commit(ctx)
}

// CountRun returns how many rows the current run has written.
func (r *JournalRepo) CountRun(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM task_journal WHERE run_id = $1`, r.runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
