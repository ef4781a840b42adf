package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/ledstate"
)

func newRun() *Run {
	return &Run{
		Source:         "dir",
		Calibration:    `{"nb_leds":3}`,
		EndingIndex:    1,
		RequiredNoLed:  5,
		RequiredEnding: 5,
		Interval:       30 * time.Second,
	}
}

func TestRunRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)

	run := newRun()
	require.NoError(t, s.Runs().Create(run))
	assert.NotEmpty(t, run.ID)

	got, err := s.Runs().GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "dir", got.Source)
	assert.Equal(t, 1, got.EndingIndex)
	assert.Equal(t, 30*time.Second, got.Interval)
	assert.Equal(t, decision.Running, got.Verdict)
	assert.Nil(t, got.FinishedAt)
}

func TestRunRepository_Finish(t *testing.T) {
	s := newTestStore(t)

	run := newRun()
	require.NoError(t, s.Runs().Create(run))
	require.NoError(t, s.Runs().Finish(run.ID, decision.EndingDetected, 7, 210*time.Second, ""))

	got, err := s.Runs().GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, decision.EndingDetected, got.Verdict)
	assert.Equal(t, 7, got.Ticks)
	assert.Equal(t, 210*time.Second, got.Elapsed)
	assert.NotNil(t, got.FinishedAt)

	err = s.Runs().Finish("missing", decision.EndingDetected, 1, 0, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRunRepository_List(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := newRun()
		run.StartedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Runs().Create(run))
	}

	runs, err := s.Runs().List(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt), "most recent first")

	limited, err := s.Runs().List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRunRepository_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Runs().GetByID("nonexistent")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Runs().Delete("nonexistent"), ErrNotFound))
}

func TestRunRepository_DeleteCascadesTicks(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.NewRecorder(newRun())
	require.NoError(t, err)
	require.NoError(t, rec.ObserveTick(decision.Tick{Index: 1, Classification: ledstate.NoLedDetected()}))

	require.NoError(t, s.Runs().Delete(rec.RunID()))

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM ticks").Scan(&n))
	assert.Equal(t, 0, n)
}
