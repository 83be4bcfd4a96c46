// Package request defines the RequestContext shared across pipeline stages.
package request

import "time"

// Status of a request across its whole lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Context is the join key record for plan/critique/execution versions.
// It is a single-writer register: the stage currently active receives it
// by value and returns an updated copy; everyone else reads only.
type Context struct {
	RequestID  string    `json:"request_id"`
	UserQuery  string    `json:"user_query"`
	AgentChain []string  `json:"agent_chain"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// WithStage returns a copy with the stage appended to the agent chain.
func (c Context) WithStage(stage string) Context {
	chain := make([]string, 0, len(c.AgentChain)+1)
	chain = append(chain, c.AgentChain...)
	chain = append(chain, stage)
	c.AgentChain = chain
	return c
}

// WithStatus returns a copy with the status replaced.
func (c Context) WithStatus(s Status) Context {
	c.Status = s
	return c
}
