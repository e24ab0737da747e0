package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLeasePolicy(t *testing.T) {
	p, err := NewLeasePolicy(30*time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, LeasePolicy{Default: 30 * time.Second, Max: time.Minute}, p)

	p, err = NewLeasePolicy(30*time.Second, 0)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, p.Max)

	_, err = NewLeasePolicy(0, time.Minute)
	require.ErrorIs(t, err, ErrInvalidDefaultLease)

	_, err = NewLeasePolicy(time.Minute, time.Second)
	require.ErrorIs(t, err, ErrInvalidMaxLease)
}

func TestLeasePolicy_Resolve(t *testing.T) {
	p, err := NewLeasePolicy(30*time.Second, 10*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name      string
		requested time.Duration
		want      time.Duration
		clamped   bool
	}{
		{"zero uses default", 0, 30 * time.Second, false},
		{"truncated to whole seconds", 45*time.Second + 300*time.Millisecond, 45 * time.Second, false},
		{"sub-second raised to one second", 500 * time.Millisecond, time.Second, true},
		{"negative raised to one second", -5 * time.Second, time.Second, true},
		{"above max clamped", time.Hour, 10 * time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Resolve(tt.requested))
			assert.Equal(t, tt.clamped, p.Clamped(tt.requested))
		})
	}
}
