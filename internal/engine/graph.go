package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/breakwater/breakwater/pkg/types"
)

// DuplicateStepError reports a step id used more than once in a plan.
type DuplicateStepError struct {
	ID int
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step id %d", e.ID)
}

// UnknownDependencyError reports a dependency on a step id that does not
// exist in the plan.
type UnknownDependencyError struct {
	StepID  int
	Missing int
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("step %d depends on unknown step %d", e.StepID, e.Missing)
}

// CyclicDependencyError reports a dependency cycle. Members holds every
// step id that could not be scheduled, in ascending order.
type CyclicDependencyError struct {
	Members []int
}

func (e *CyclicDependencyError) Error() string {
	ids := make([]string, len(e.Members))
	for i, id := range e.Members {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("dependency cycle between steps [%s]", strings.Join(ids, ", "))
}

// BuildWaves validates the dependency graph and groups steps into waves.
//
// Wave k holds every step whose dependencies are all satisfied by waves
// earlier than k, so members of one wave can run concurrently. Each pass
// of the layering collects the currently-ready steps; a pass that finds
// none while steps remain means those steps form a cycle. Order within a
// wave follows declaration order.
//
// A flat list with no dependencies yields one wave with every step; a
// chain where each step depends on the previous yields one step per
// wave. Neither shape is special-cased.
func BuildWaves(steps []*types.Step) ([]types.Wave, error) {
	byID := make(map[int]*types.Step, len(steps))
	for _, step := range steps {
		if _, dup := byID[step.ID]; dup {
			return nil, &DuplicateStepError{ID: step.ID}
		}
		byID[step.ID] = step
	}

	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownDependencyError{StepID: step.ID, Missing: dep}
			}
		}
	}

	placed := make(map[int]bool, len(steps))
	var waves []types.Wave

	for len(placed) < len(steps) {
		var ready []int
		for _, step := range steps {
			if placed[step.ID] {
				continue
			}
			satisfied := true
			for _, dep := range step.DependsOn {
				// A self-dependency is never satisfied and surfaces
				// as a single-member cycle.
				if !placed[dep] {
					satisfied = false
					break
				}
			}
			if satisfied {
				ready = append(ready, step.ID)
			}
		}

		if len(ready) == 0 {
			var members []int
			for _, step := range steps {
				if !placed[step.ID] {
					members = append(members, step.ID)
				}
			}
			sort.Ints(members)
			return nil, &CyclicDependencyError{Members: members}
		}

		for _, id := range ready {
			placed[id] = true
		}
		waves = append(waves, types.Wave{Index: len(waves), StepIDs: ready})
	}

	return waves, nil
}
