// Package mocks provides gomock implementations of the enrichment ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockJobRepository(ctrl)
//	jobs.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(nil, nil)
package mocks

// Job store ports: JobRepository (Claim, Complete, Fail, Enqueue, GetByID, Stats),
// JobChainer (CompleteAndEnqueue) and JobMaintenanceRepository (ReclaimExpired, DeleteOldJobs).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/schoolcrm/enrichment/internal/core JobRepository,JobChainer,JobMaintenanceRepository

// Model and cache ports used by the stage handlers.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=model_ports_mock.go github.com/schoolcrm/enrichment/internal/core ModelRouter,Embedder,IntentCache
