package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepo_ReclaimExpired(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newTestJobRepo(db)
		ctx := context.Background()

		_, err := repo.Enqueue(ctx, testutil.NewEnqueueRequest(uuid.NewString()).Build())
		require.NoError(t, err)
		job := claimOne(t, repo, model.JobTypeNormalizeMessage, "crashed")

		// Lease still valid: nothing to reclaim.
		res, err := repo.ReclaimExpired(ctx, core.ReclaimOptions{MaxReclaims: 1, BatchSize: 10})
		require.NoError(t, err)
		assert.Equal(t, model.ReclaimResult{}, res)

		tp.AddTime(2 * time.Minute)
		res, err = repo.ReclaimExpired(ctx, core.ReclaimOptions{MaxReclaims: 1, BatchSize: 10})
		require.NoError(t, err)
		assert.Equal(t, model.ReclaimResult{Requeued: 1}, res)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, 1, got.ReclaimCount)
		assert.Nil(t, got.WorkerID)
		assert.Nil(t, got.LeaseExpiresAt)

		// The old owner can no longer complete it.
		ok, err := repo.Complete(ctx, job.ID, "crashed")
		require.NoError(t, err)
		assert.False(t, ok)

		// Second expiry exceeds MaxReclaims and fails the job.
		claimOne(t, repo, model.JobTypeNormalizeMessage, "crashed-again")
		tp.AddTime(2 * time.Minute)
		res, err = repo.ReclaimExpired(ctx, core.ReclaimOptions{MaxReclaims: 1, BatchSize: 10})
		require.NoError(t, err)
		assert.Equal(t, model.ReclaimResult{Failed: 1}, res)

		got, err = repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.LastError)
		assert.Equal(t, ReclaimLimitError, *got.LastError)
	})
}

func TestJobRepo_ReclaimExpired_Superseded(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newTestJobRepo(db)
		ctx := context.Background()
		entity := uuid.NewString()
		opts := core.ReclaimOptions{MaxReclaims: 3, BatchSize: 10}

		_, err := repo.Enqueue(ctx, testutil.NewEnqueueRequest(entity).Build())
		require.NoError(t, err)
		stale := claimOne(t, repo, model.JobTypeNormalizeMessage, "w1")

		// The message was edited while the first job was running.
		tp.AddTime(time.Second)
		fresh, err := repo.Enqueue(ctx, testutil.NewEnqueueRequest(entity).Build())
		require.NoError(t, err)

		tp.AddTime(2 * time.Minute)
		res, err := repo.ReclaimExpired(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, model.ReclaimResult{Failed: 1}, res)

		got, err := repo.GetByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.LastError)
		assert.Equal(t, SupersededError, *got.LastError)

		got, err = repo.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)

		// Two expired claims for one entity: only the newest goes back to pending.
		claimOne(t, repo, model.JobTypeNormalizeMessage, "w2")
		tp.AddTime(time.Second)
		newest, err := repo.Enqueue(ctx, testutil.NewEnqueueRequest(entity).Build())
		require.NoError(t, err)
		claimOne(t, repo, model.JobTypeNormalizeMessage, "w3")

		tp.AddTime(2 * time.Minute)
		res, err = repo.ReclaimExpired(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, model.ReclaimResult{Requeued: 1, Failed: 1}, res)

		got, err = repo.GetByID(ctx, newest.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, 1, got.ReclaimCount)

		got, err = repo.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo, tp := newTestJobRepo(db)
		ctx := context.Background()

		for range 3 {
			_, err := repo.Enqueue(ctx, testutil.NewEnqueueRequest(uuid.NewString()).Build())
			require.NoError(t, err)
		}
		jobs, err := repo.Claim(ctx, model.ClaimRequest{
			Types: []model.JobType{model.JobTypeNormalizeMessage}, Limit: 2, WorkerID: "w", Lease: time.Minute,
		})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		_, err = repo.Complete(ctx, jobs[0].ID, "w")
		require.NoError(t, err)
		_, err = repo.Fail(ctx, jobs[1].ID, "w", "boom")
		require.NoError(t, err)

		tp.AddTime(48 * time.Hour)

		deleted, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status: model.JobStatusCompleted, MaxAge: 24 * time.Hour, BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		deleted, err = repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status: model.JobStatusFailed, MaxAge: 72 * time.Hour, BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)

		_, err = repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status: model.JobStatusPending, MaxAge: time.Hour, BatchSize: 100,
		})
		require.Error(t, err)

		assert.Equal(t, map[model.JobStatus]int{
			model.JobStatusPending: 1,
			model.JobStatusFailed:  1,
		}, testutil.JobStatusCounts(t, db))
	})
}
