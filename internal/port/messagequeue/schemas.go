package messagequeue

// PlanStartedPayload is the schema for stride.plan.started messages.
type PlanStartedPayload struct {
	RequestID string `json:"request_id"`
	PlanID    string `json:"plan_id"`
	Version   int    `json:"version"`
	Steps     int    `json:"steps"`
}

// PlanFinishedPayload is the schema for stride.plan.completed,
// stride.plan.failed and stride.plan.awaiting_feedback messages.
type PlanFinishedPayload struct {
	RequestID        string `json:"request_id"`
	PlanID           string `json:"plan_id"`
	ExecutionVersion int    `json:"execution_version"`
	OverallSuccess   bool   `json:"overall_success"`
	DurationMS       int64  `json:"duration_ms"`
}

// StepEventPayload is the schema for stride.step.started, completed,
// failed and adapted messages. Detail carries the error text on failure
// and the adapted action on adaptation.
type StepEventPayload struct {
	RequestID string `json:"request_id"`
	PlanID    string `json:"plan_id"`
	StepID    string `json:"step_id"`
	Order     int    `json:"order"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
}

// StepSkippedPayload is the schema for stride.step.skipped messages.
type StepSkippedPayload struct {
	StepID string `json:"step_id"`
	Order  int    `json:"order"`
	Reason string `json:"reason"`
}

// QuestionAskedPayload is the schema for stride.question.asked messages.
type QuestionAskedPayload struct {
	RequestID  string `json:"request_id"`
	QuestionID string `json:"question_id"`
	StepID     string `json:"step_id"`
	Priority   string `json:"priority"`
}
