package job

import (
	"errors"
	"time"
)

var (
	ErrInvalidDefaultLease = errors.New("default lease must be positive")
	ErrInvalidMaxLease     = errors.New("max lease must be at least the default lease")
)

// LeasePolicy bounds how long a claim is owned before the reaper may take it
// back. Leases are whole seconds because the claim SQL stores them that way.
type LeasePolicy struct {
	Default time.Duration
	Max     time.Duration
}

// NewLeasePolicy validates the bounds. A zero max pins every lease to def.
func NewLeasePolicy(def, maxLease time.Duration) (LeasePolicy, error) {
	if def <= 0 {
		return LeasePolicy{}, ErrInvalidDefaultLease
	}
	if maxLease == 0 {
		maxLease = def
	}
	if maxLease < def {
		return LeasePolicy{}, ErrInvalidMaxLease
	}
	return LeasePolicy{Default: def, Max: maxLease}, nil
}

// Resolve returns the lease for a requested duration. Zero means the default;
// anything else is clamped to [1s, Max] and truncated to whole seconds.
func (p LeasePolicy) Resolve(requested time.Duration) time.Duration {
	d := requested
	if d == 0 {
		d = p.Default
	}
	if p.Max > 0 {
		d = min(d, p.Max)
	}
	return max(d.Truncate(time.Second), time.Second)
}

// Clamped reports whether Resolve would change a non-zero request.
func (p LeasePolicy) Clamped(requested time.Duration) bool {
	return requested != 0 && p.Resolve(requested) != requested.Truncate(time.Second)
}
