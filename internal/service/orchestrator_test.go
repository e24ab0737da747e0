package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/enrich"
	"github.com/schoolcrm/enrichment/internal/domain/job"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/mocks"
	"github.com/schoolcrm/enrichment/internal/testutil/enrichfake"
)

const orchOrg = "00000000-0000-0000-0000-0000000000bb"

type orchEnv struct {
	jobs       *enrichfake.Jobs
	messages   *enrichfake.Messages
	texts      *enrichfake.Texts
	embeddings *enrichfake.Embeddings
	embedder   *enrichfake.Embedder
	router     *enrichfake.Router
	registry   enrich.Registry
}

func newOrchEnv(t *testing.T) *orchEnv {
	t.Helper()
	env := &orchEnv{
		jobs:       enrichfake.NewJobs(),
		messages:   enrichfake.NewMessages(),
		texts:      enrichfake.NewTexts(),
		embeddings: enrichfake.NewEmbeddings(),
		embedder:   enrichfake.NewEmbedder("test-embedding"),
		router:     enrichfake.NewRouter(`{"intent":"greeting","stage":"lead"}`, "router/test"),
	}
	reg, err := enrich.NewRegistry(enrich.Deps{
		Messages:    env.messages,
		Texts:       env.texts,
		Embeddings:  env.embeddings,
		Annotations: enrichfake.NewAnnotations(),
		Cache:       enrichfake.NewIntentCache(),
		Router:      env.router,
		Embedder:    env.embedder,
		Jobs:        env.jobs,
	})
	require.NoError(t, err)
	env.registry = reg
	return env
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		BatchSize:    config.DefaultBatchSize,
		MaxBatchSize: config.MaxBatchSize,
		Concurrency:  4,
		ClaimLease:   time.Minute,
		ModelTimeout: 5 * time.Second,
	}
}

func newTestOrchestrator(t *testing.T, jobs core.JobRepository, reg enrich.Registry, chain *job.ChainTable) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(OrchestratorOptions{
		Jobs:     jobs,
		Handlers: reg,
		Chain:    chain,
		Config:   testWorkerConfig(),
	})
	require.NoError(t, err)
	return o
}

func enqueue(t *testing.T, jobs core.JobRepository, typ model.JobType, entityID string) *model.Job {
	t.Helper()
	j, err := jobs.Enqueue(context.Background(), &model.EnqueueRequest{
		OrganizationID: orchOrg,
		Type:           typ,
		EntityType:     model.EntityTypeMessage,
		EntityID:       entityID,
		Priority:       60,
		Payload:        json.RawMessage(`{"source":"test"}`),
	})
	require.NoError(t, err)
	return j
}

func TestNewOrchestrator_Validation(t *testing.T) {
	env := newOrchEnv(t)

	_, err := NewOrchestrator(OrchestratorOptions{Handlers: env.registry})
	require.Error(t, err)

	_, err = NewOrchestrator(OrchestratorOptions{Jobs: env.jobs})
	require.Error(t, err)

	partial := enrich.Registry{}
	for k, v := range env.registry {
		partial[k] = v
	}
	delete(partial, model.JobTypeClusterSemantic)
	_, err = NewOrchestrator(OrchestratorOptions{Jobs: env.jobs, Handlers: partial})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster_semantic")
}

func TestOrchestrator_Run_Idle(t *testing.T) {
	env := newOrchEnv(t)
	o := newTestOrchestrator(t, env.jobs, env.registry, nil)

	res, err := o.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, RunStatusIdle, res.Status)
	assert.Equal(t, string(job.GroupNormalize), res.WorkerGroup)
	assert.True(t, strings.HasPrefix(res.WorkerID, "worker-"))
	assert.Zero(t, res.JobsClaimed+res.Completed+res.Failed+res.Chained)
}

func TestOrchestrator_Run_UnknownGroup(t *testing.T) {
	env := newOrchEnv(t)
	o := newTestOrchestrator(t, env.jobs, env.registry, nil)

	_, err := o.Run(context.Background(), RunRequest{WorkerGroup: "summarize"})
	require.ErrorIs(t, err, ErrUnknownWorkerGroup)
}

func TestOrchestrator_Run_ClaimError(t *testing.T) {
	env := newOrchEnv(t)
	env.jobs.ClaimErr = errors.New("connection refused")
	o := newTestOrchestrator(t, env.jobs, env.registry, nil)

	_, err := o.Run(context.Background(), RunRequest{WorkerGroup: "embed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim jobs")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestOrchestrator_Chaining(t *testing.T) {
	stores := map[string]func(*enrichfake.Jobs) core.JobRepository{
		"transactional": func(j *enrichfake.Jobs) core.JobRepository { return enrichfake.ChainingJobs{Jobs: j} },
		"fallback":      func(j *enrichfake.Jobs) core.JobRepository { return j },
	}
	for name, wrap := range stores {
		t.Run(name, func(t *testing.T) {
			env := newOrchEnv(t)
			repo := wrap(env.jobs)
			o := newTestOrchestrator(t, repo, env.registry, nil)
			ctx := context.Background()

			msg := env.messages.Add(orchOrg, uuid.NewString(), "Hello! When is the open day?")
			enqueue(t, repo, model.JobTypeNormalizeMessage, msg.ID)

			res, err := o.Run(ctx, RunRequest{WorkerGroup: "normalize", WorkerID: "w-1"})
			require.NoError(t, err)
			assert.Equal(t, RunResult{
				Status: RunStatusOK, WorkerID: "w-1", WorkerGroup: "normalize",
				JobsClaimed: 1, Completed: 1, Chained: 1,
			}, *res)

			embeds := env.jobs.ByType(model.JobTypeEmbedMessage)
			require.Len(t, embeds, 1)
			assert.Equal(t, msg.ID, embeds[0].EntityID)
			assert.Equal(t, orchOrg, embeds[0].OrganizationID)
			assert.Equal(t, 60, embeds[0].Priority)
			assert.JSONEq(t, `{"source":"test"}`, string(embeds[0].Payload))

			res, err = o.Run(ctx, RunRequest{WorkerGroup: "embed"})
			require.NoError(t, err)
			assert.Equal(t, 1, res.Chained)
			require.Len(t, env.jobs.ByType(model.JobTypeAnnotateMessage), 1)

			res, err = o.Run(ctx, RunRequest{WorkerGroup: "annotate"})
			require.NoError(t, err)
			assert.Equal(t, 1, res.Completed)
			assert.Equal(t, 0, res.Chained)

			for _, j := range env.jobs.All() {
				assert.Equal(t, model.JobStatusCompleted, j.Status, j.Type)
			}
			assert.Len(t, env.jobs.All(), 3)
		})
	}
}

func TestOrchestrator_ChainSkipsActiveDuplicate(t *testing.T) {
	env := newOrchEnv(t)
	repo := enrichfake.ChainingJobs{Jobs: env.jobs}
	o := newTestOrchestrator(t, repo, env.registry, nil)

	msg := env.messages.Add(orchOrg, uuid.NewString(), "hi")
	enqueue(t, repo, model.JobTypeNormalizeMessage, msg.ID)
	enqueue(t, repo, model.JobTypeEmbedMessage, msg.ID)

	res, err := o.Run(context.Background(), RunRequest{WorkerGroup: "normalize"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 0, res.Chained)
	assert.Len(t, env.jobs.ByType(model.JobTypeEmbedMessage), 1)
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	env := newOrchEnv(t)
	boom := errors.New(strings.Repeat("x", 800))
	var ids []string
	for range 5 {
		ids = append(ids, uuid.NewString())
	}
	env.registry[model.JobTypeNormalizeMessage] = enrich.HandlerFunc(func(_ context.Context, j *model.Job) error {
		if j.EntityID == ids[1] {
			return boom
		}
		return nil
	})
	o := newTestOrchestrator(t, env.jobs, env.registry, nil)
	for _, id := range ids {
		enqueue(t, env.jobs, model.JobTypeNormalizeMessage, id)
	}

	res, err := o.Run(context.Background(), RunRequest{WorkerGroup: "normalize", BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, res.JobsClaimed)
	assert.Equal(t, 4, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Chained)

	for _, j := range env.jobs.ByType(model.JobTypeNormalizeMessage) {
		if j.EntityID != ids[1] {
			assert.Equal(t, model.JobStatusCompleted, j.Status)
			continue
		}
		assert.Equal(t, model.JobStatusFailed, j.Status)
		require.NotNil(t, j.LastError)
		assert.Len(t, *j.LastError, model.MaxErrorLength)
	}
}

// ctxBoundJobs rejects writes on a done context the way database/sql does.
type ctxBoundJobs struct {
	*enrichfake.Jobs
}

func (c ctxBoundJobs) Complete(ctx context.Context, id, workerID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.Jobs.Complete(ctx, id, workerID)
}

func (c ctxBoundJobs) Fail(ctx context.Context, id, workerID, errMsg string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.Jobs.Fail(ctx, id, workerID, errMsg)
}

func TestOrchestrator_OutcomesSurviveRunCancellation(t *testing.T) {
	env := newOrchEnv(t)
	repo := ctxBoundJobs{env.jobs}
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	for _, id := range ids {
		enqueue(t, repo, model.JobTypeNormalizeMessage, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.registry[model.JobTypeNormalizeMessage] = enrich.HandlerFunc(func(ctx context.Context, j *model.Job) error {
		if j.EntityID == ids[0] {
			cancel()
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	})
	o := newTestOrchestrator(t, repo, env.registry, nil)

	res, err := o.Run(ctx, RunRequest{WorkerGroup: "normalize"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.JobsClaimed)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 2, res.Failed)

	for _, j := range env.jobs.ByType(model.JobTypeNormalizeMessage) {
		if j.EntityID == ids[0] {
			assert.Equal(t, model.JobStatusCompleted, j.Status)
			continue
		}
		assert.Equal(t, model.JobStatusFailed, j.Status)
		require.NotNil(t, j.LastError)
		assert.Contains(t, *j.LastError, "context canceled")
	}
}

func TestOrchestrator_DeadlineExpiredJobsAreFailed(t *testing.T) {
	env := newOrchEnv(t)
	repo := ctxBoundJobs{env.jobs}
	for range 3 {
		enqueue(t, repo, model.JobTypeNormalizeMessage, uuid.NewString())
	}
	env.registry[model.JobTypeNormalizeMessage] = enrich.HandlerFunc(func(ctx context.Context, _ *model.Job) error {
		<-ctx.Done()
		return ctx.Err()
	})
	o := newTestOrchestrator(t, repo, env.registry, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := o.Run(ctx, RunRequest{WorkerGroup: "normalize"})
	require.NoError(t, err)
	assert.Equal(t, RunResult{
		Status:      RunStatusOK,
		WorkerID:    res.WorkerID,
		WorkerGroup: "normalize",
		JobsClaimed: 3,
		Failed:      3,
	}, *res)
	for _, j := range env.jobs.ByType(model.JobTypeNormalizeMessage) {
		assert.Equal(t, model.JobStatusFailed, j.Status)
	}
}

func TestOrchestrator_EmbedScenario(t *testing.T) {
	noEmbedEdge := job.MustNewChainTable(map[model.JobType]model.JobType{
		model.JobTypeNormalizeMessage: model.JobTypeEmbedMessage,
	})
	tests := []struct {
		name  string
		chain *job.ChainTable
		want  int
	}{
		{name: "default chain", chain: nil, want: 2},
		{name: "chain without embed edge", chain: noEmbedEdge, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newOrchEnv(t)
			o := newTestOrchestrator(t, env.jobs, env.registry, tt.chain)

			// A is normalized and already embedded; B was never normalized.
			a := uuid.NewString()
			env.texts.Put(&model.NormalizedText{
				MessageID: a, NormalizedText: "hello", TextHash: enrich.HashText("hello"), Language: "en", TokensCount: 2,
			})
			env.embeddings.Put(model.EmbeddingKey{
				EntityType: model.EntityTypeMessage, EntityID: a, ModelName: "test-embedding",
			}, []float32{1, 2, 3})
			b := uuid.NewString()

			enqueue(t, env.jobs, model.JobTypeEmbedMessage, a)
			enqueue(t, env.jobs, model.JobTypeEmbedMessage, b)

			res, err := o.Run(context.Background(), RunRequest{WorkerGroup: "embed"})
			require.NoError(t, err)
			assert.Equal(t, 2, res.JobsClaimed)
			assert.Equal(t, 2, res.Completed)
			assert.Equal(t, 0, res.Failed)
			assert.Equal(t, tt.want, res.Chained)
			assert.Equal(t, 0, env.embedder.Calls())
		})
	}
}

func TestOrchestrator_LostLeaseIsNotCounted(t *testing.T) {
	env := newOrchEnv(t)
	env.registry[model.JobTypeNormalizeMessage] = enrich.HandlerFunc(func(_ context.Context, j *model.Job) error {
		env.jobs.Reclaim(j.ID)
		return nil
	})
	o := newTestOrchestrator(t, env.jobs, env.registry, nil)
	enqueue(t, env.jobs, model.JobTypeNormalizeMessage, uuid.NewString())

	res, err := o.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.JobsClaimed)
	assert.Equal(t, 0, res.Completed)
	assert.Equal(t, 0, res.Chained)
	assert.Empty(t, env.jobs.ByType(model.JobTypeEmbedMessage))
	assert.Equal(t, model.JobStatusPending, env.jobs.All()[0].Status)
}

func TestOrchestrator_HandlerPanicFailsJob(t *testing.T) {
	env := newOrchEnv(t)
	env.registry[model.JobTypeClusterSemantic] = enrich.HandlerFunc(func(context.Context, *model.Job) error {
		panic("nil map")
	})
	o := newTestOrchestrator(t, env.jobs, env.registry, nil)
	enqueue(t, env.jobs, model.JobTypeClusterSemantic, uuid.NewString())

	res, err := o.Run(context.Background(), RunRequest{WorkerGroup: "cluster"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	got := env.jobs.All()[0]
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "handler panic: nil map")
}

func TestOrchestrator_UnknownJobTypeFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	env := newOrchEnv(t)
	o := newTestOrchestrator(t, repo, env.registry, nil)

	stray := &model.Job{ID: "job-1", Type: "summarize_message", Status: model.JobStatusClaimed}
	repo.EXPECT().Claim(gomock.Any(), gomock.Any()).Return([]*model.Job{stray}, nil)
	repo.EXPECT().Fail(gomock.Any(), "job-1", "w", ErrUnknownJobType.Error()).Return(true, nil)

	res, err := o.Run(context.Background(), RunRequest{WorkerGroup: "normalize", WorkerID: "w"})
	require.NoError(t, err)
	assert.Equal(t, RunResult{
		Status: RunStatusOK, WorkerID: "w", WorkerGroup: "normalize", JobsClaimed: 1, Failed: 1,
	}, *res)
}

func TestOrchestrator_ClaimRequestShape(t *testing.T) {
	tests := []struct {
		name      string
		req       RunRequest
		wantLimit int
		wantTypes []model.JobType
		wantLease time.Duration
	}{
		{
			name:      "defaults",
			req:       RunRequest{},
			wantLimit: config.DefaultBatchSize,
			wantTypes: []model.JobType{model.JobTypeNormalizeMessage},
			wantLease: time.Minute,
		},
		{
			name:      "clamped batch and lease",
			req:       RunRequest{WorkerGroup: "annotate", BatchSize: 1000, Lease: 24 * time.Hour},
			wantLimit: config.MaxBatchSize,
			wantTypes: []model.JobType{model.JobTypeAnnotateMessage, model.JobTypeBatchAnnotate},
			wantLease: 4 * time.Minute,
		},
		{
			name:      "explicit",
			req:       RunRequest{WorkerGroup: "EMBED", BatchSize: 3, Lease: 90 * time.Second},
			wantLimit: 3,
			wantTypes: []model.JobType{model.JobTypeEmbedMessage, model.JobTypeBatchEmbed},
			wantLease: 90 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockJobRepository(ctrl)
			o := newTestOrchestrator(t, repo, newOrchEnv(t).registry, nil)

			repo.EXPECT().Claim(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, req model.ClaimRequest) ([]*model.Job, error) {
					assert.Equal(t, tt.wantLimit, req.Limit)
					assert.Equal(t, tt.wantTypes, req.Types)
					assert.Equal(t, tt.wantLease, req.Lease)
					assert.NotEmpty(t, req.WorkerID)
					return nil, nil
				})

			_, err := o.Run(context.Background(), tt.req)
			require.NoError(t, err)
		})
	}
}
