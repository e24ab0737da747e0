package job

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

var (
	// ErrChainUnknownType is returned when a transition names a type outside the enum.
	ErrChainUnknownType = errors.New("chain references unknown job type")
	// ErrChainCycle is returned when following transitions revisits a type.
	ErrChainCycle = errors.New("chain contains a cycle")
	// ErrChainDeadEnd is returned when a transition targets a type no worker group claims.
	ErrChainDeadEnd = errors.New("chain target is not claimed by any worker group")
)

// ChainTable maps a completed job type to the job type enqueued next for the same entity.
type ChainTable struct {
	next map[model.JobType]model.JobType
}

// NewChainTable validates transitions against the enum and the worker group map.
func NewChainTable(transitions map[model.JobType]model.JobType) (*ChainTable, error) {
	next := make(map[model.JobType]model.JobType, len(transitions))
	for from, to := range transitions {
		if !from.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrChainUnknownType, from)
		}
		if !to.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrChainUnknownType, to)
		}
		if _, ok := GroupFor(to); !ok {
			return nil, fmt.Errorf("%w: %s -> %s", ErrChainDeadEnd, from, to)
		}
		next[from] = to
	}

	for start := range next {
		seen := map[model.JobType]bool{start: true}
		cur := start
		for {
			to, ok := next[cur]
			if !ok {
				break
			}
			if seen[to] {
				return nil, fmt.Errorf("%w: %s -> %s", ErrChainCycle, cur, to)
			}
			seen[to] = true
			cur = to
		}
	}

	return &ChainTable{next: next}, nil
}

// MustNewChainTable is like NewChainTable but panics on an invalid table.
func MustNewChainTable(transitions map[model.JobType]model.JobType) *ChainTable {
	c, err := NewChainTable(transitions)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultChain is the message pipeline: normalize, then embed, then annotate.
// Completing an embed job therefore chains an annotate job; pass a table
// without that edge when annotation is enqueued by other means.
func DefaultChain() *ChainTable {
	return MustNewChainTable(map[model.JobType]model.JobType{
		model.JobTypeNormalizeMessage: model.JobTypeEmbedMessage,
		model.JobTypeEmbedMessage:     model.JobTypeAnnotateMessage,
	})
}

// Next returns the job type that follows t, if any.
func (c *ChainTable) Next(t model.JobType) (model.JobType, bool) {
	if c == nil {
		return "", false
	}
	to, ok := c.next[t]
	return to, ok
}

// Len returns the number of transitions.
func (c *ChainTable) Len() int {
	if c == nil {
		return 0
	}
	return len(c.next)
}

// String lists the transitions as "from->to", sorted by source type.
func (c *ChainTable) String() string {
	if c == nil {
		return ""
	}
	edges := make([]string, 0, len(c.next))
	for _, from := range slices.Sorted(maps.Keys(c.next)) {
		edges = append(edges, string(from)+"->"+string(c.next[from]))
	}
	return strings.Join(edges, ", ")
}
