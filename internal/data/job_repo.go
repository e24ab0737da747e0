package data

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/schoolcrm/enrichment/internal/core"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for the enrichment job queue.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var (
	_ core.JobRepository            = (*JobRepo)(nil)
	_ core.JobChainer               = (*JobRepo)(nil)
	_ core.JobMaintenanceRepository = (*JobRepo)(nil)
)

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

var jobColumnNames = []string{
	"id",
	"organization_id",
	"job_type",
	"entity_type",
	"entity_id",
	"status",
	"priority",
	"payload",
	"worker_id",
	"error",
	"reclaim_count",
	"claimed_at",
	"lease_expires_at",
	"completed_at",
	"created_at",
	"updated_at",
}

var jobColumns = strings.Join(jobColumnNames, ", ")

// qualifiedJobColumns prefixes every job column with alias.
func qualifiedJobColumns(alias string) string {
	cols := make([]string, len(jobColumnNames))
	for i, c := range jobColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
