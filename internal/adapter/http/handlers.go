package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stride-ai/stride/internal/adapter/ws"
	"github.com/stride-ai/stride/internal/domain/critique"
	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/domain/request"
	"github.com/stride-ai/stride/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ToolLister enumerates the tools the configured MCP server exposes.
type ToolLister interface {
	ListTools(ctx context.Context) ([]string, error)
}

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	Engine *service.Engine
	Ledger *service.Ledger
	Router *service.Router
	Hub    *ws.Hub
	Tools  ToolLister

	// DBPing reports storage health; nil means no database is wired.
	DBPing func(ctx context.Context) error
}

// SubmitPlan ingests a plan for the request and assigns it the next
// plan version.
func (h *Handlers) SubmitPlan(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "id")

	p, ok := readJSON[plan.Plan](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	p.RequestID = requestID
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Version == 0 {
		p.Version = 1 // the ledger stamps the real version on save
	}
	for i := range p.Steps {
		if p.Steps[i].Status == "" {
			p.Steps[i].Status = plan.StepStatusPending
		}
	}

	if err := p.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	version, err := h.Ledger.SavePlan(r.Context(), &p)
	if err != nil {
		writeDomainError(w, err, "plan not saved")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"plan_id": p.ID, "version": version})
}

// SubmitCritique ingests a critique for the request and assigns it the
// next critique version.
func (h *Handlers) SubmitCritique(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "id")

	c, ok := readJSON[critique.Critique](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	c.RequestID = requestID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.PlanID == "" {
		writeError(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	version, err := h.Ledger.SaveCritique(r.Context(), &c)
	if err != nil {
		writeDomainError(w, err, "critique not saved")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"version": version})
}

// RoutePlan returns the confidence routing outcome for the latest plan and
// critique.
func (h *Handlers) RoutePlan(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "id")

	p, err := h.Ledger.LatestPlan(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err, "no plan for request")
		return
	}
	c, err := h.Ledger.LatestCritique(r.Context(), requestID)
	if err != nil {
		c = nil // routing without a critique is allowed
	}
	writeJSON(w, http.StatusOK, h.Router.Route(p, c))
}

type executeRequest struct {
	// Force runs the plan even when confidence routing recommends review.
	Force bool `json:"force,omitempty"`
}

// runStatus maps an execution outcome onto the request lifecycle. A halted
// run waiting on answers is still in progress, not failed.
func runStatus(result *execution.PlanResult) request.Status {
	switch {
	case result.OverallSuccess:
		return request.StatusCompleted
	case result.RequiresUserFeedback:
		return request.StatusInProgress
	default:
		return request.StatusFailed
	}
}

// ExecutePlan runs the latest plan version for the request. Unless forced,
// a plan routed below the execute band is rejected with the routing
// outcome.
func (h *Handlers) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "id")

	var req executeRequest
	if r.ContentLength > 0 {
		var ok bool
		if req, ok = readJSON[executeRequest](w, r, maxRequestBodySize); !ok {
			return
		}
	}

	rc := request.Context{
		RequestID: requestID,
		Status:    request.StatusInProgress,
		CreatedAt: time.Now().UTC(),
	}

	if !req.Force {
		rc = rc.WithStage("routing")
		p, err := h.Ledger.LatestPlan(r.Context(), requestID)
		if err != nil {
			writeDomainError(w, err, "no plan for request")
			return
		}
		c, err := h.Ledger.LatestCritique(r.Context(), requestID)
		if err != nil {
			c = nil
		}
		if outcome := h.Router.Route(p, c); !h.Router.Executable(outcome) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   "confidence routing does not allow execution",
				"routing": outcome,
			})
			return
		}
	}

	rc = rc.WithStage("execution")
	result, err := h.Engine.Execute(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err, "no plan for request")
		return
	}
	rc = rc.WithStatus(runStatus(result))
	writeJSON(w, http.StatusOK, map[string]any{"request": rc, "result": result})
}

type resumeRequest struct {
	// Answers maps follow-up question IDs to the operator's answers.
	Answers map[string]string `json:"answers"`
}

// ResumePlan re-runs the latest plan after outstanding questions were
// answered. Succeeded steps are never re-invoked.
func (h *Handlers) ResumePlan(w http.ResponseWriter, r *http.Request) {
	requestID := urlParam(r, "id")

	req, ok := readJSON[resumeRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "answers are required")
		return
	}

	rc := request.Context{
		RequestID: requestID,
		Status:    request.StatusInProgress,
		CreatedAt: time.Now().UTC(),
	}.WithStage("resume")

	result, err := h.Engine.ResumeWithFeedback(r.Context(), requestID, req.Answers)
	if err != nil {
		writeDomainError(w, err, "nothing to resume for request")
		return
	}
	rc = rc.WithStatus(runStatus(result))
	writeJSON(w, http.StatusOK, map[string]any{"request": rc, "result": result})
}

// ListPlans returns every plan version for the request, ascending.
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Ledger.Plans(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no plans for request")
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// ListCritiques returns every critique version for the request, ascending.
func (h *Handlers) ListCritiques(w http.ResponseWriter, r *http.Request) {
	critiques, err := h.Ledger.Critiques(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no critiques for request")
		return
	}
	writeJSON(w, http.StatusOK, critiques)
}

// ListExecutions returns every execution version for the request, ascending.
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	executions, err := h.Ledger.Executions(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no executions for request")
		return
	}
	writeJSON(w, http.StatusOK, executions)
}

// GetLatestExecution returns the highest-versioned execution result.
func (h *Handlers) GetLatestExecution(w http.ResponseWriter, r *http.Request) {
	result, err := h.Ledger.LatestExecution(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no executions for request")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListQuestions returns the unanswered follow-up questions from the latest
// execution.
func (h *Handlers) ListQuestions(w http.ResponseWriter, r *http.Request) {
	result, err := h.Ledger.LatestExecution(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no executions for request")
		return
	}

	var outstanding []any
	for i := range result.QuestionsAsked {
		if !result.QuestionsAsked[i].Answered() {
			outstanding = append(outstanding, result.QuestionsAsked[i])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requires_user_feedback": result.RequiresUserFeedback,
		"questions":              outstanding,
	})
}

// ListTools returns the tool names the MCP server exposes.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	if h.Tools == nil {
		writeError(w, http.StatusServiceUnavailable, "no tool server configured")
		return
	}
	tools, err := h.Tools.ListTools(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "tool server unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// Health reports process and dependency health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]any{
		"status":         "ok",
		"ws_connections": h.Hub.ConnectionCount(),
	}
	if h.DBPing != nil {
		if err := h.DBPing(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp["database"] = "ok"
		}
	}
	writeJSON(w, status, resp)
}
