// Package job holds the queue policies shared by the orchestrator and the job store:
// worker groups, the stage chain table and claim leases.
package job

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// ErrUnknownWorkerGroup is returned for group names outside Groups.
var ErrUnknownWorkerGroup = errors.New("unknown worker group")

// WorkerGroup is a named partition of job types that can be scaled independently.
type WorkerGroup string

const (
	GroupNormalize WorkerGroup = "normalize"
	GroupEmbed     WorkerGroup = "embed"
	GroupAnnotate  WorkerGroup = "annotate"
	GroupCluster   WorkerGroup = "cluster"

	// DefaultGroup is used when a trigger does not name a group.
	DefaultGroup = GroupNormalize
)

// Groups is the static worker group map. Callers must not mutate the returned map.
func Groups() map[WorkerGroup][]model.JobType {
	return groups
}

var groups = map[WorkerGroup][]model.JobType{
	GroupNormalize: {model.JobTypeNormalizeMessage},
	GroupEmbed:     {model.JobTypeEmbedMessage, model.JobTypeBatchEmbed},
	GroupAnnotate:  {model.JobTypeAnnotateMessage, model.JobTypeBatchAnnotate},
	GroupCluster:   {model.JobTypeClusterSemantic},
}

// ParseWorkerGroup resolves a group name. An empty name selects DefaultGroup.
func ParseWorkerGroup(name string) (WorkerGroup, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultGroup, nil
	}
	g := WorkerGroup(name)
	if _, ok := groups[g]; !ok {
		return "", fmt.Errorf("%w: %q (valid options: %s)", ErrUnknownWorkerGroup, name, strings.Join(GroupNames(), ", "))
	}
	return g, nil
}

// Types returns a copy of the job types claimed by the group.
func (g WorkerGroup) Types() []model.JobType {
	types := groups[g]
	out := make([]model.JobType, len(types))
	copy(out, types)
	return out
}

// GroupNames returns the sorted group names.
func GroupNames() []string {
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, string(g))
	}
	sort.Strings(names)
	return names
}

// GroupFor returns the worker group that claims t.
func GroupFor(t model.JobType) (WorkerGroup, bool) {
	for g, types := range groups {
		for _, jt := range types {
			if jt == t {
				return g, true
			}
		}
	}
	return "", false
}
