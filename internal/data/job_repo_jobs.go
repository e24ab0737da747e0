package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/data/pgxutil"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// claimSQL hands pending jobs of the requested types to one worker. SKIP LOCKED
// keeps concurrent claimers from ever receiving the same row.
var claimSQL = `
  WITH cte AS (
    SELECT id FROM enrichment_jobs
    WHERE status = 'pending' AND job_type = ANY($1::text[])
    ORDER BY priority DESC, created_at ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED
  )
  UPDATE enrichment_jobs j
  SET
    status = 'claimed',
    worker_id = $3,
    claimed_at = $4,
    lease_expires_at = $5,
    updated_at = $4
  FROM cte
  WHERE j.id = cte.id
  RETURNING ` + qualifiedJobColumns("j")

var insertJobSQL = `
  INSERT INTO enrichment_jobs (organization_id, job_type, entity_type, entity_id, priority, payload, created_at, updated_at)
  VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
  RETURNING ` + jobColumns

// insertChainedJobSQL skips silently when the successor is already pending.
const insertChainedJobSQL = `
  INSERT INTO enrichment_jobs (organization_id, job_type, entity_type, entity_id, priority, payload, created_at, updated_at)
  VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
  ON CONFLICT (job_type, entity_type, entity_id) WHERE status = 'pending' DO NOTHING
  RETURNING id`

const completeJobSQL = `
  UPDATE enrichment_jobs
  SET status = 'completed',
      completed_at = $3,
      updated_at = $3,
      lease_expires_at = NULL,
      error = NULL
  WHERE id = $1 AND status = 'claimed' AND worker_id = $2`

// Enqueue inserts a pending job. It returns ErrJobDuplicate when a pending job
// for the same type and entity already exists. A claimed one does not block it.
func (r *JobRepo) Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("enqueue request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	row := r.DB.QueryRowContext(ctx, insertJobSQL, insertArgs(req, r.timeProvider.Now())...)
	job, err := scanJob(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrJobDuplicate
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func insertArgs(req *model.EnqueueRequest, now time.Time) []any {
	return []any{
		req.OrganizationID,
		string(req.Type),
		req.EntityType,
		req.EntityID,
		req.Priority,
		payloadOrEmpty(req.Payload),
		now.UTC(),
	}
}

func payloadOrEmpty(p json.RawMessage) []byte {
	if len(p) == 0 {
		return []byte(`{}`)
	}
	return p
}

// Claim atomically claims up to req.Limit pending jobs of req.Types for req.WorkerID.
// Jobs are returned highest priority first, oldest first within a priority.
func (r *JobRepo) Claim(ctx context.Context, req model.ClaimRequest) ([]*model.Job, error) {
	if req.Limit <= 0 || len(req.Types) == 0 {
		return nil, nil
	}
	if req.WorkerID == "" {
		return nil, errors.New("worker id is required")
	}
	if req.Lease <= 0 {
		return nil, errors.New("lease must be positive")
	}

	types := make([]string, 0, len(req.Types))
	for _, t := range req.Types {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", model.ErrInvalidJobType, t)
		}
		types = append(types, string(t))
	}

	jobs, err := pgxutil.InTx(ctx, r.DB, pgxutil.ReadCommitted, func(tx pgx.Tx) ([]*model.Job, error) {
		now := r.timeProvider.Now().UTC()
		rows, qerr := tx.Query(ctx, claimSQL, types, req.Limit, req.WorkerID, now, now.Add(req.Lease))
		if qerr != nil {
			return nil, fmt.Errorf("claim jobs: %w", qerr)
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Job, error) {
			return scanJob(row)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Complete marks a claimed job completed. It reports false when the job is
// not currently claimed by workerID.
func (r *JobRepo) Complete(ctx context.Context, id, workerID string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, completeJobSQL, id, workerID, now)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return affectedOne(res)
}

// Fail marks a claimed job failed. The message is truncated to model.MaxErrorLength.
func (r *JobRepo) Fail(ctx context.Context, id, workerID, errMsg string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE enrichment_jobs
		SET status = 'failed',
		    error = $3,
		    completed_at = $4,
		    updated_at = $4,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'claimed' AND worker_id = $2
	`, id, workerID, model.TruncateError(errMsg), now)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return affectedOne(res)
}

// CompleteAndEnqueue completes a claimed job and enqueues next in the same transaction.
func (r *JobRepo) CompleteAndEnqueue(
	ctx context.Context,
	id, workerID string,
	next *model.EnqueueRequest,
) (core.ChainOutcome, error) {
	if next == nil {
		ok, err := r.Complete(ctx, id, workerID)
		return core.ChainOutcome{Completed: ok}, err
	}
	if err := next.Validate(); err != nil {
		return core.ChainOutcome{}, fmt.Errorf("chained job: %w", err)
	}

	return pgxutil.InTx(ctx, r.DB, pgxutil.ReadCommitted, func(tx pgx.Tx) (core.ChainOutcome, error) {
		var out core.ChainOutcome
		now := r.timeProvider.Now().UTC()

		tag, err := tx.Exec(ctx, completeJobSQL, id, workerID, now)
		if err != nil {
			return out, fmt.Errorf("complete job: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return out, nil
		}
		out.Completed = true

		var nextID string
		err = tx.QueryRow(ctx, insertChainedJobSQL, insertArgs(next, now)...).Scan(&nextID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return out, nil
		case err != nil:
			return out, fmt.Errorf("enqueue chained job: %w", err)
		}
		out.Enqueued = true
		return out, nil
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM enrichment_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Stats returns per-type job counts. Every job type is present, in declaration order.
func (r *JobRepo) Stats(ctx context.Context) ([]model.JobTypeStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
  SELECT
    job_type,
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'claimed')   AS claimed,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM enrichment_jobs
  GROUP BY job_type
  `)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byType := make(map[model.JobType]model.JobStats)
	for rows.Next() {
		var t model.JobType
		var s model.JobStats
		if scanErr := rows.Scan(&t, &s.Pending, &s.Claimed, &s.Completed, &s.Failed); scanErr != nil {
			return nil, fmt.Errorf("scan job stats: %w", scanErr)
		}
		byType[t] = s
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate job stats: %w", rowsErr)
	}

	all := model.AllJobTypes()
	out := make([]model.JobTypeStats, 0, len(all))
	for _, t := range all {
		out = append(out, model.JobTypeStats{Type: t, JobStats: byType[t]})
	}
	return out, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// scanJob reads one row selected with jobColumns. database/sql and pgx both
// set a nil pointer for NULL when handed a pointer to a pointer.
func scanJob(row rowScanner) (*model.Job, error) {
	var (
		j       model.Job
		payload []byte
	)
	if err := row.Scan(
		&j.ID, &j.OrganizationID, &j.Type, &j.EntityType, &j.EntityID,
		&j.Status, &j.Priority, &payload, &j.WorkerID, &j.LastError,
		&j.ReclaimCount, &j.ClaimedAt, &j.LeaseExpiresAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Payload = jsonOrEmpty(payload)
	j.CreatedAt, j.UpdatedAt = j.CreatedAt.UTC(), j.UpdatedAt.UTC()
	for _, t := range []*time.Time{j.ClaimedAt, j.LeaseExpiresAt, j.CompletedAt} {
		if t != nil {
			*t = t.UTC()
		}
	}
	return &j, nil
}
