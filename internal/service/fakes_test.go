package service_test

import (
	"context"
	"sync"

	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/port/messagequeue"
	"github.com/stride-ai/stride/internal/port/oracle"
)

// fakeOracle lets each test script the three oracle operations and records
// how often each was called.
type fakeOracle struct {
	mu sync.Mutex

	extractFn    func(rawPriorResult any, parameterIntent string) (oracle.Extraction, error)
	adaptFn      func(failedStep plan.Step, failureContext string) (oracle.Proposal, error)
	checkpointFn func(p *plan.Plan, resultsSoFar []execution.StepResult) (oracle.Verdict, error)

	extractCalls    int
	adaptCalls      int
	checkpointCalls int
}

func (f *fakeOracle) ExtractParameter(_ context.Context, rawPriorResult any, parameterIntent string) (oracle.Extraction, error) {
	f.mu.Lock()
	f.extractCalls++
	f.mu.Unlock()
	if f.extractFn == nil {
		return oracle.Extraction{Unresolved: true, Reason: "not scripted"}, nil
	}
	return f.extractFn(rawPriorResult, parameterIntent)
}

func (f *fakeOracle) ProposeAdaptation(_ context.Context, failedStep plan.Step, failureContext string) (oracle.Proposal, error) {
	f.mu.Lock()
	f.adaptCalls++
	f.mu.Unlock()
	if f.adaptFn == nil {
		return oracle.Proposal{None: true}, nil
	}
	return f.adaptFn(failedStep, failureContext)
}

func (f *fakeOracle) Checkpoint(_ context.Context, p *plan.Plan, resultsSoFar []execution.StepResult, _ string) (oracle.Verdict, error) {
	f.mu.Lock()
	f.checkpointCalls++
	f.mu.Unlock()
	if f.checkpointFn == nil {
		return oracle.VerdictContinue, nil
	}
	return f.checkpointFn(p, resultsSoFar)
}

// fakeRunner scripts tool invocations per action and counts them.
type fakeRunner struct {
	mu      sync.Mutex
	fn      func(call int, action string, params map[string]any) (any, error)
	calls   int
	byTool  map[string]int
	invoked []string
}

func (f *fakeRunner) Invoke(_ context.Context, action string, params map[string]any) (any, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	if f.byTool == nil {
		f.byTool = make(map[string]int)
	}
	f.byTool[action]++
	f.invoked = append(f.invoked, action)
	f.mu.Unlock()
	if f.fn == nil {
		return "ok", nil
	}
	return f.fn(call, action, params)
}

// fakeQueue records published subjects; Subscribe is never used in tests.
type fakeQueue struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeQueue) Publish(_ context.Context, subject string, _ []byte) error {
	f.mu.Lock()
	f.subjects = append(f.subjects, subject)
	f.mu.Unlock()
	return nil
}

func (f *fakeQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (f *fakeQueue) Drain() error { return nil }
func (f *fakeQueue) Close() error { return nil }

func (f *fakeQueue) published(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subjects {
		if s == subject {
			n++
		}
	}
	return n
}
