package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cepro/gridrl/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	repo, err := New(filepath.Join(t.TempDir(), "diagnostics.sqlite"))
	require.NoError(t, err)
	return repo
}

func TestEpisodesLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	runID := uuid.New()
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	for i, reward := range []float64{-30, -10, -20} {
		require.NoError(t, repo.AddEpisode(telemetry.EpisodeSummary{
			ID:          uuid.New(),
			RunID:       runID,
			Time:        start.Add(time.Duration(i) * time.Minute),
			Steps:       96,
			TotalReward: reward,
		}))
	}

	fresh, err := repo.GetEpisodes(10, true)
	require.NoError(t, err)
	assert.Len(t, fresh, 3)

	best, ok, err := repo.BestEpisode(runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -10.0, best.TotalReward)

	_, ok, err = repo.BestEpisode(uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.IncrementUploadAttemptCount(fresh[:2]))
	fresh, err = repo.GetEpisodes(10, true)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
	old, err := repo.GetEpisodes(10, false)
	require.NoError(t, err)
	require.Len(t, old, 2)
	assert.Equal(t, uint(1), old[0].UploadAttemptCount)

	require.NoError(t, repo.DeleteRecords(old))
	old, err = repo.GetEpisodes(10, false)
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestUpdatesAreLimitedAndOrdered(t *testing.T) {
	repo := newTestRepository(t)
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.AddUpdate(telemetry.UpdateReport{
			ID:        uuid.New(),
			Time:      start.Add(time.Duration(i) * time.Minute),
			Iteration: i,
		}))
	}

	updates, err := repo.GetUpdates(2, true)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	// newest first
	assert.Equal(t, 5, updates[0].Iteration)
	assert.Equal(t, 4, updates[1].Iteration)
}
