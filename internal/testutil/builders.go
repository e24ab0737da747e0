// Package testutil provides testing utilities and helpers for the enrichment job system.
package testutil

import (
	"encoding/json"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// TestOrgID is the organization used by fixtures unless a test overrides it.
const TestOrgID = "7f1c2d3e-4b5a-4c6d-8e9f-0a1b2c3d4e5f"

// EnqueueRequestBuilder provides a fluent interface for building EnqueueRequest objects for testing.
type EnqueueRequestBuilder struct {
	req *model.EnqueueRequest
}

// NewEnqueueRequest creates a builder for a normalize job on entityID.
func NewEnqueueRequest(entityID string) *EnqueueRequestBuilder {
	return &EnqueueRequestBuilder{
		req: &model.EnqueueRequest{
			OrganizationID: TestOrgID,
			Type:           model.JobTypeNormalizeMessage,
			EntityType:     model.EntityTypeMessage,
			EntityID:       entityID,
		},
	}
}

// WithType sets the job type.
func (b *EnqueueRequestBuilder) WithType(jobType model.JobType) *EnqueueRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithPriority sets the job priority.
func (b *EnqueueRequestBuilder) WithPriority(priority int) *EnqueueRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithOrganization sets the organization id.
func (b *EnqueueRequestBuilder) WithOrganization(orgID string) *EnqueueRequestBuilder {
	b.req.OrganizationID = orgID
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *EnqueueRequestBuilder) WithPayloadString(payload string) *EnqueueRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithBatch sets a batch payload of entity ids.
func (b *EnqueueRequestBuilder) WithBatch(ids ...string) *EnqueueRequestBuilder {
	raw, _ := json.Marshal(model.BatchPayload{EntityIDs: ids})
	b.req.Payload = raw
	return b
}

// Build returns the constructed EnqueueRequest.
func (b *EnqueueRequestBuilder) Build() *model.EnqueueRequest {
	return b.req
}
