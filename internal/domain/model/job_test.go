//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_Valid(t *testing.T) {
	for _, jt := range AllJobTypes() {
		assert.True(t, jt.Valid(), string(jt))
	}
	assert.False(t, JobType("translate_message").Valid())
	assert.False(t, JobType("").Valid())
}

func TestJobType_UnmarshalText(t *testing.T) {
	var jt JobType
	require.NoError(t, jt.UnmarshalText([]byte(" Batch_Annotate ")))
	assert.Equal(t, JobTypeBatchAnnotate, jt)

	err := jt.UnmarshalText([]byte("summarize"))
	require.ErrorIs(t, err, ErrInvalidJobType)
}

func TestEnqueueRequest_Validate(t *testing.T) {
	valid := func() *EnqueueRequest {
		return &EnqueueRequest{
			OrganizationID: "550e8400-e29b-41d4-a716-446655440000",
			Type:           JobTypeNormalizeMessage,
			EntityType:     EntityTypeMessage,
			EntityID:       "6fa459ea-ee8a-3ca4-894e-db77e160355e",
			Priority:       5,
			Payload:        json.RawMessage(`{"source":"whatsapp"}`),
		}
	}

	tests := []struct {
		name     string
		mutate   func(r *EnqueueRequest)
		errorIs  error
		errorMsg string
	}{
		{name: "valid", mutate: func(*EnqueueRequest) {}},
		{name: "empty payload allowed", mutate: func(r *EnqueueRequest) { r.Payload = nil }},
		{
			name:    "unknown job type rejected",
			mutate:  func(r *EnqueueRequest) { r.Type = "summarize" },
			errorIs: ErrInvalidJobType,
		},
		{
			name:     "organization must be uuid",
			mutate:   func(r *EnqueueRequest) { r.OrganizationID = "acme" },
			errorMsg: "organization_id",
		},
		{
			name:     "entity id required",
			mutate:   func(r *EnqueueRequest) { r.EntityID = " " },
			errorMsg: "entity_id",
		},
		{
			name:     "priority bounds",
			mutate:   func(r *EnqueueRequest) { r.Priority = 101 },
			errorMsg: "priority",
		},
		{
			name:     "payload must be json",
			mutate:   func(r *EnqueueRequest) { r.Payload = json.RawMessage(`{oops`) },
			errorMsg: "payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			err := req.Validate()
			switch {
			case tt.errorIs != nil:
				require.ErrorIs(t, err, tt.errorIs)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "boom", TruncateError("boom"))

	long := strings.Repeat("x", 800)
	assert.Len(t, TruncateError(long), MaxErrorLength)

	// multi-byte runes are never split
	cyrillic := strings.Repeat("ж", 600)
	got := TruncateError(cyrillic)
	assert.Equal(t, MaxErrorLength, len([]rune(got)))
	assert.True(t, strings.HasPrefix(cyrillic, got))
}

func TestJobStatus(t *testing.T) {
	assert.True(t, JobStatusClaimed.Valid())
	assert.False(t, JobStatus("running").Valid())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusClaimed.Terminal())
}
