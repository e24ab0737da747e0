package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/data/pgxutil"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
const (
	advisoryLockReaperMajor   = 2100
	advisoryLockReaperReclaim = 1 // minor key for ReclaimExpired
	advisoryLockReaperDelete  = 2 // minor key for DeleteOldJobs
)

// Errors recorded on jobs failed by ReclaimExpired.
const (
	ReclaimLimitError = "lease expired and reclaim limit reached"
	SupersededError   = "lease expired and a newer job for the entity is pending"
)

// ReclaimExpired returns claimed jobs whose lease has expired to pending, or
// fails them once they have been reclaimed opts.MaxReclaims times. An expired
// job is failed as superseded when requeueing it would duplicate a pending job
// for the same stage and entity, including another expired job in the batch. It
// processes up to opts.BatchSize jobs per call and is a no-op when another
// reaper holds the lock.
func (r *JobRepo) ReclaimExpired(ctx context.Context, opts core.ReclaimOptions) (model.ReclaimResult, error) {
	var result model.ReclaimResult
	if opts.BatchSize <= 0 {
		return result, errors.New("batch size must be greater than zero")
	}
	if opts.MaxReclaims < 0 {
		opts.MaxReclaims = 0
	}

	err := pgxutil.SQLTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		locked, err := tryReaperLock(ctx, tx, advisoryLockReaperReclaim)
		if err != nil || !locked {
			return err
		}

		now := r.timeProvider.Now().UTC()
		rows, err := tx.QueryContext(ctx, `
			WITH expired AS (
				SELECT id, job_type, entity_type, entity_id, reclaim_count, created_at
				FROM enrichment_jobs
				WHERE status = 'claimed'
				  AND lease_expires_at < $1
				ORDER BY lease_expires_at
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			), decided AS (
				SELECT e.id,
				       row_number() OVER (
				           PARTITION BY e.job_type, e.entity_type, e.entity_id
				           ORDER BY e.created_at DESC
				       ) > 1
				       OR EXISTS (
				           SELECT 1 FROM enrichment_jobs p
				           WHERE p.status = 'pending'
				             AND p.job_type = e.job_type
				             AND p.entity_type = e.entity_type
				             AND p.entity_id = e.entity_id
				       ) AS superseded,
				       e.reclaim_count >= $3 AS exhausted
				FROM expired e
			)
			UPDATE enrichment_jobs j
			SET status = CASE WHEN d.superseded OR d.exhausted THEN 'failed' ELSE 'pending' END,
			    reclaim_count = CASE WHEN d.superseded OR d.exhausted THEN j.reclaim_count ELSE j.reclaim_count + 1 END,
			    error = CASE WHEN d.superseded THEN $5 WHEN d.exhausted THEN $4 ELSE j.error END,
			    completed_at = CASE WHEN d.superseded OR d.exhausted THEN $1 ELSE NULL END,
			    worker_id = NULL,
			    claimed_at = NULL,
			    lease_expires_at = NULL,
			    updated_at = $1
			FROM decided d
			WHERE j.id = d.id
			RETURNING j.status
		`, now, opts.BatchSize, opts.MaxReclaims, ReclaimLimitError, SupersededError)
		if err != nil {
			return fmt.Errorf("reclaim expired jobs: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var status model.JobStatus
			if scanErr := rows.Scan(&status); scanErr != nil {
				return fmt.Errorf("scan reclaimed job: %w", scanErr)
			}
			if status == model.JobStatusFailed {
				result.Failed++
			} else {
				result.Requeued++
			}
		}
		return rows.Err()
	})
	if err != nil {
		return model.ReclaimResult{}, err
	}
	return result, nil
}

// DeleteOldJobs deletes terminal jobs with the given status older than maxAge.
// Processes up to batchSize jobs per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
// Returns the number of jobs deleted.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Terminal() {
		return 0, fmt.Errorf("invalid job status for deletion: %s", params.Status)
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if params.MaxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.SQLTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		locked, err := tryReaperLock(ctx, tx, advisoryLockReaperDelete)
		if err != nil || !locked {
			return err
		}

		cutoffTime := r.timeProvider.Now().Add(-params.MaxAge)
		res, err := tx.ExecContext(ctx, `
			DELETE FROM enrichment_jobs
			WHERE id IN (
				SELECT id FROM enrichment_jobs
				WHERE status = $1
				  AND COALESCE(completed_at, updated_at) < $2
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $3
			)
		`, params.Status, cutoffTime.UTC(), params.BatchSize)
		if err != nil {
			return fmt.Errorf("delete old jobs: %w", err)
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		rowsAffected = ra
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

func tryReaperLock(ctx context.Context, tx *sql.Tx, minor int) (bool, error) {
	var locked bool
	if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, minor).Scan(&locked); err != nil {
		return false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	return locked, nil
}
