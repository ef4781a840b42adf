package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/ledstate"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// TickRepository provides access to the ticks of runs.
type TickRepository struct {
	db *sql.DB
}

// Ticks returns the tick repository for this store.
func (s *Store) Ticks() *TickRepository {
	return &TickRepository{db: s.db}
}

// Append stores one tick. tick.RunID must reference an existing run.
func (r *TickRepository) Append(tick decision.Tick) error {
	if tick.RunID == "" {
		return fmt.Errorf("tick %d has no run id", tick.Index)
	}
	at := tick.At
	if at.IsZero() {
		at = time.Now()
	}

	c := tick.Classification
	_, err := r.db.Exec(
		`INSERT INTO ticks (run_id, tick_index, kind, state, count, x, xn,
			consecutive_no_led, consecutive_ending, verdict, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tick.RunID, tick.Index, c.Kind.String(), c.State, c.Count, c.X, c.XN,
		tick.State.ConsecutiveNoLed, tick.State.ConsecutiveEnding, tick.Verdict.String(), tick.Err, at,
	)
	return err
}

// ListByRun returns the ticks of a run in order.
func (r *TickRepository) ListByRun(runID string) ([]decision.Tick, error) {
	rows, err := r.db.Query(
		`SELECT run_id, tick_index, kind, state, count, x, xn,
			consecutive_no_led, consecutive_ending, verdict, error, created_at
		 FROM ticks WHERE run_id = ? ORDER BY tick_index`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []decision.Tick
	for rows.Next() {
		var t decision.Tick
		var kind, verdict string

		err := rows.Scan(&t.RunID, &t.Index, &kind, &t.Classification.State, &t.Classification.Count,
			&t.Classification.X, &t.Classification.XN, &t.State.ConsecutiveNoLed,
			&t.State.ConsecutiveEnding, &verdict, &t.Err, &t.At)
		if err != nil {
			return nil, err
		}

		if t.Classification.Kind, err = ledstate.ParseKind(kind); err != nil {
			return nil, err
		}
		if t.Verdict, err = decision.ParseVerdict(verdict); err != nil {
			return nil, err
		}
		t.State.TotalTicks = t.Index
		ticks = append(ticks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ticks, nil
}

// Recorder persists the ticks of a run as they are observed.
type Recorder struct {
	store *Store
	runID string
}

// NewRecorder creates the run row and returns a recorder for its ticks.
func (s *Store) NewRecorder(run *Run) (*Recorder, error) {
	if err := s.Runs().Create(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &Recorder{store: s, runID: run.ID}, nil
}

// RunID returns the id of the recorded run.
func (r *Recorder) RunID() string {
	return r.runID
}

// ObserveTick stores the tick under the recorded run.
func (r *Recorder) ObserveTick(tick decision.Tick) error {
	tick.RunID = r.runID
	return r.store.Ticks().Append(tick)
}

// Finish records the outcome of the run.
func (r *Recorder) Finish(verdict decision.Verdict, ticks int, elapsed time.Duration, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	return r.store.Runs().Finish(r.runID, verdict, ticks, elapsed, msg)
}
