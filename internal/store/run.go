package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/ledwatch/internal/decision"
)

// Run is one watch run, from the first tick to the terminal verdict.
type Run struct {
	ID             string           `json:"id"`
	Source         string           `json:"source"`
	Calibration    string           `json:"calibration"`
	EndingIndex    int              `json:"ending_index"`
	RequiredNoLed  int              `json:"required_no_led"`
	RequiredEnding int              `json:"required_ending"`
	Interval       time.Duration    `json:"interval_ns"`
	Verdict        decision.Verdict `json:"verdict"`
	Ticks          int              `json:"ticks"`
	Elapsed        time.Duration    `json:"elapsed_ns"`
	Error          string           `json:"error,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
}

// RunRepository provides access to runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

const runColumns = `id, source, calibration, ending_index, required_no_led, required_ending,
	interval_ms, verdict, ticks, elapsed_ms, error, started_at, finished_at`

// Create inserts a new running run. An empty ID is replaced by a new UUID.
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Calibration == "" {
		run.Calibration = "{}"
	}
	run.Verdict = decision.Running

	_, err := r.db.Exec(
		`INSERT INTO runs (id, source, calibration, ending_index, required_no_led, required_ending,
			interval_ms, verdict, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Calibration, run.EndingIndex, run.RequiredNoLed, run.RequiredEnding,
		run.Interval.Milliseconds(), run.Verdict.String(), run.StartedAt,
	)
	return err
}

// Finish records the outcome of a run. errMsg is empty for runs that
// reached a terminal verdict.
func (r *RunRepository) Finish(id string, verdict decision.Verdict, ticks int, elapsed time.Duration, errMsg string) error {
	result, err := r.db.Exec(
		`UPDATE runs SET verdict = ?, ticks = ?, elapsed_ms = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		verdict.String(), ticks, elapsed.Milliseconds(), errMsg, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs first. A limit <= 0 returns all runs.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Delete removes a run and its ticks.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var verdict string
	var intervalMs, elapsedMs int64
	var finished sql.NullTime

	err := row.Scan(&run.ID, &run.Source, &run.Calibration, &run.EndingIndex, &run.RequiredNoLed,
		&run.RequiredEnding, &intervalMs, &verdict, &run.Ticks, &elapsedMs, &run.Error,
		&run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	v, err := decision.ParseVerdict(verdict)
	if err != nil {
		return nil, err
	}
	run.Verdict = v
	run.Interval = time.Duration(intervalMs) * time.Millisecond
	run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}
