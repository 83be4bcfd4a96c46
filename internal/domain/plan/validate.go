package plan

import (
	"errors"
	"fmt"
)

var (
	ErrGoalRequired      = errors.New("goal is required")
	ErrNoSteps           = errors.New("at least one step is required")
	ErrStepMissingID     = errors.New("step id is required")
	ErrStepMissingAction = errors.New("step action is required")
	ErrDuplicateStepID   = errors.New("duplicate step id")
	ErrBadOrder          = errors.New("step orders must be contiguous starting at 1")
	ErrDAGInvalidRef     = errors.New("step dependency references unknown step id")
	ErrDAGCycle          = errors.New("step dependencies contain a cycle")
	ErrVersionInvalid    = errors.New("plan version must be >= 1")
)

// Validate checks the plan for structural correctness before execution.
func (p *Plan) Validate() error {
	if p.Goal == "" {
		return ErrGoalRequired
	}
	if p.Version < 1 {
		return ErrVersionInvalid
	}
	if len(p.Steps) == 0 {
		return ErrNoSteps
	}

	index := make(map[string]int, len(p.Steps))
	orders := make(map[int]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingID)
		}
		if s.Action == "" {
			return fmt.Errorf("step %s: %w", s.ID, ErrStepMissingAction)
		}
		if _, dup := index[s.ID]; dup {
			return fmt.Errorf("step %s: %w", s.ID, ErrDuplicateStepID)
		}
		index[s.ID] = i
		orders[s.Order] = true
	}

	for n := 1; n <= len(p.Steps); n++ {
		if !orders[n] {
			return fmt.Errorf("missing order %d: %w", n, ErrBadOrder)
		}
	}

	return validateDAG(p.Steps, index)
}

// validateDAG checks that step dependencies form a valid DAG using Kahn's algorithm.
func validateDAG(steps []Step, index map[string]int) error {
	n := len(steps)
	inDegree := make([]int, n)
	adj := make([][]int, n)

	for i, s := range steps {
		for _, dep := range s.DependsOn {
			idx, ok := index[dep]
			if !ok {
				return fmt.Errorf("step %s depends on %q: %w", s.ID, dep, ErrDAGInvalidRef)
			}
			if idx == i {
				return fmt.Errorf("step %s depends on itself: %w", s.ID, ErrDAGCycle)
			}
			adj[idx] = append(adj[idx], i)
			inDegree[i]++
		}
	}

	// Kahn's algorithm: topological sort
	queue := make([]int, 0, n)
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, neighbor := range adj[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if visited != n {
		return ErrDAGCycle
	}
	return nil
}
