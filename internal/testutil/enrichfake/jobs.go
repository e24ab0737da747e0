package enrichfake

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// Jobs implements core.JobRepository in memory. It does not implement
// core.JobChainer; wrap it in ChainingJobs for that.
type Jobs struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	seq  time.Time

	// ClaimErr, when set, is returned by Claim.
	ClaimErr error
}

var _ core.JobRepository = (*Jobs)(nil)

// NewJobs returns an empty job store.
func NewJobs() *Jobs {
	return &Jobs{
		jobs: map[string]*model.Job{},
		seq:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *Jobs) Enqueue(_ context.Context, req *model.EnqueueRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("enqueue request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(req)
}

func (s *Jobs) insertLocked(req *model.EnqueueRequest) (*model.Job, error) {
	for _, j := range s.jobs {
		if j.Type == req.Type && j.EntityType == req.EntityType && j.EntityID == req.EntityID && j.Status == model.JobStatusPending {
			return nil, model.ErrJobDuplicate
		}
	}
	s.seq = s.seq.Add(time.Millisecond)
	payload := append([]byte(nil), req.Payload...)
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	j := &model.Job{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Type:           req.Type,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		Status:         model.JobStatusPending,
		Priority:       req.Priority,
		Payload:        payload,
		CreatedAt:      s.seq,
		UpdatedAt:      s.seq,
	}
	s.jobs[j.ID] = j
	return cloneJob(j), nil
}

func (s *Jobs) Claim(_ context.Context, req model.ClaimRequest) ([]*model.Job, error) {
	if s.ClaimErr != nil {
		return nil, s.ClaimErr
	}
	if req.Limit <= 0 || len(req.Types) == 0 {
		return nil, nil
	}
	want := make(map[model.JobType]bool, len(req.Types))
	for _, t := range req.Types {
		want[t] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*model.Job
	for _, j := range s.jobs {
		if j.Status == model.JobStatusPending && want[j.Type] {
			candidates = append(candidates, j)
		}
	}
	sortJobs(candidates)
	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}

	now := time.Now().UTC()
	lease := now.Add(req.Lease)
	out := make([]*model.Job, 0, len(candidates))
	for _, j := range candidates {
		worker := req.WorkerID
		j.Status = model.JobStatusClaimed
		j.WorkerID = &worker
		j.ClaimedAt = &now
		j.LeaseExpiresAt = &lease
		out = append(out, cloneJob(j))
	}
	return out, nil
}

func (s *Jobs) Complete(_ context.Context, id, workerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked(id, workerID, model.JobStatusCompleted, ""), nil
}

func (s *Jobs) Fail(_ context.Context, id, workerID, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked(id, workerID, model.JobStatusFailed, model.TruncateError(errMsg)), nil
}

func (s *Jobs) finishLocked(id, workerID string, status model.JobStatus, errMsg string) bool {
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobStatusClaimed || j.WorkerID == nil || *j.WorkerID != workerID {
		return false
	}
	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	j.LeaseExpiresAt = nil
	if errMsg != "" {
		j.LastError = &errMsg
	}
	return true
}

func (s *Jobs) GetByID(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	return cloneJob(j), nil
}

func (s *Jobs) Stats(_ context.Context) ([]model.JobTypeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	by := map[model.JobType]*model.JobStats{}
	for _, t := range model.AllJobTypes() {
		by[t] = &model.JobStats{}
	}
	for _, j := range s.jobs {
		st, ok := by[j.Type]
		if !ok {
			continue
		}
		switch j.Status {
		case model.JobStatusPending:
			st.Pending++
		case model.JobStatusClaimed:
			st.Claimed++
		case model.JobStatusCompleted:
			st.Completed++
		case model.JobStatusFailed:
			st.Failed++
		}
	}
	out := make([]model.JobTypeStats, 0, len(by))
	for _, t := range model.AllJobTypes() {
		out = append(out, model.JobTypeStats{Type: t, JobStats: *by[t]})
	}
	return out, nil
}

// All returns copies of every job, oldest first.
func (s *Jobs) All() []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// ByType returns copies of the jobs of type t, oldest first.
func (s *Jobs) ByType(t model.JobType) []*model.Job {
	var out []*model.Job
	for _, j := range s.All() {
		if j.Type == t {
			out = append(out, j)
		}
	}
	return out
}

// Reclaim returns a claimed job to pending, as an expired lease would. It
// fails the job instead when a pending one for the same stage and entity exists.
func (s *Jobs) Reclaim(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobStatusClaimed {
		return
	}
	j.WorkerID = nil
	j.ClaimedAt = nil
	j.LeaseExpiresAt = nil
	for _, o := range s.jobs {
		if o.Status == model.JobStatusPending && o.Type == j.Type && o.EntityType == j.EntityType && o.EntityID == j.EntityID {
			msg := "superseded by a pending job"
			j.Status = model.JobStatusFailed
			j.LastError = &msg
			return
		}
	}
	j.Status = model.JobStatusPending
	j.ReclaimCount++
}

// ChainingJobs adds core.JobChainer to Jobs.
type ChainingJobs struct {
	*Jobs
}

var _ core.JobChainer = ChainingJobs{}

// CompleteAndEnqueue completes id and enqueues next under one lock.
func (c ChainingJobs) CompleteAndEnqueue(
	_ context.Context,
	id, workerID string,
	next *model.EnqueueRequest,
) (core.ChainOutcome, error) {
	if next != nil {
		if err := next.Validate(); err != nil {
			return core.ChainOutcome{}, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var out core.ChainOutcome
	if !c.finishLocked(id, workerID, model.JobStatusCompleted, "") {
		return out, nil
	}
	out.Completed = true
	if next == nil {
		return out, nil
	}
	_, err := c.insertLocked(next)
	switch {
	case errors.Is(err, model.ErrJobDuplicate):
		return out, nil
	case err != nil:
		return out, err
	}
	out.Enqueued = true
	return out, nil
}

func sortJobs(jobs []*model.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}

func cloneJob(j *model.Job) *model.Job {
	cp := *j
	cp.Payload = append([]byte(nil), j.Payload...)
	return &cp
}
