package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/mocks"
	"github.com/schoolcrm/enrichment/internal/service"
)

func TestNewRunner_RequiresStore(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.EqualError(t, err, "database connection is required")
}

func TestRunner_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobMaintenanceRepository(ctrl)

	cfg := config.ReaperConfig{MaxReclaims: 2, BatchSize: 50, CompletedMaxAge: time.Hour, FailedMaxAge: 2 * time.Hour}
	gomock.InOrder(
		repo.EXPECT().
			ReclaimExpired(gomock.Any(), core.ReclaimOptions{MaxReclaims: 2, BatchSize: 50}).
			Return(model.ReclaimResult{Requeued: 1}, nil),
		repo.EXPECT().
			ReclaimExpired(gomock.Any(), gomock.Any()).
			Return(model.ReclaimResult{}, nil),
		repo.EXPECT().
			DeleteOldJobs(gomock.Any(), core.DeleteOldJobsParams{Status: model.JobStatusCompleted, MaxAge: time.Hour, BatchSize: 50}).
			Return(int64(3), nil),
		repo.EXPECT().
			DeleteOldJobs(gomock.Any(), gomock.Any()).
			Return(int64(0), nil),
		repo.EXPECT().
			DeleteOldJobs(gomock.Any(), core.DeleteOldJobsParams{Status: model.JobStatusFailed, MaxAge: 2 * time.Hour, BatchSize: 50}).
			Return(int64(0), nil),
	)

	r, err := NewRunner(RunnerOptions{Repo: repo, Config: cfg})
	require.NoError(t, err)

	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, service.SweepReport{Requeued: 1, DeletedCompleted: 3}, rep)
}

func TestRunner_RunOnceReportsStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobMaintenanceRepository(ctrl)

	repo.EXPECT().ReclaimExpired(gomock.Any(), gomock.Any()).Return(model.ReclaimResult{}, errors.New("conn reset"))
	repo.EXPECT().DeleteOldJobs(gomock.Any(), gomock.Any()).Return(int64(0), nil).Times(2)

	r, err := NewRunner(RunnerOptions{Repo: repo, Config: config.ReaperConfig{BatchSize: 10}})
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reclaim_expired: conn reset")
}
