package plan

import "sort"

// Ordered returns the steps sorted by their 1-based Order field.
// The input is not mutated.
func Ordered(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Ready reports whether the given step may start: it is pending and every
// step it depends on has completed.
func Ready(step *Step, steps []Step) bool {
	if step.Status != StepStatusPending {
		return false
	}
	completed := make(map[string]bool, len(steps))
	for i := range steps {
		if steps[i].Status == StepStatusCompleted {
			completed[steps[i].ID] = true
		}
	}
	for _, dep := range step.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// BlockedBy returns the IDs of dependencies of step that are permanently
// failed or skipped. A non-empty result means the step can never run in
// this execution and must be recorded as skipped, not silently dropped.
func BlockedBy(step *Step, steps []Step) []string {
	dead := make(map[string]bool, len(steps))
	for i := range steps {
		switch steps[i].Status {
		case StepStatusFailed, StepStatusSkipped:
			dead[steps[i].ID] = true
		}
	}
	var blocked []string
	for _, dep := range step.DependsOn {
		if dead[dep] {
			blocked = append(blocked, dep)
		}
	}
	return blocked
}
