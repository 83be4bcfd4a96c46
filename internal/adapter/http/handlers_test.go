package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	stridehttp "github.com/stride-ai/stride/internal/adapter/http"
	"github.com/stride-ai/stride/internal/adapter/memory"
	"github.com/stride-ai/stride/internal/adapter/ws"
	"github.com/stride-ai/stride/internal/config"
	"github.com/stride-ai/stride/internal/domain/confidence"
	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/domain/request"
	"github.com/stride-ai/stride/internal/port/oracle"
	"github.com/stride-ai/stride/internal/port/toolrunner"
	"github.com/stride-ai/stride/internal/service"
)

// stubOracle never resolves anything; the happy-path plans below do not
// need reasoning calls.
type stubOracle struct{}

func (stubOracle) ExtractParameter(context.Context, any, string) (oracle.Extraction, error) {
	return oracle.Extraction{Unresolved: true, Reason: "no oracle in test"}, nil
}

func (stubOracle) ProposeAdaptation(context.Context, plan.Step, string) (oracle.Proposal, error) {
	return oracle.Proposal{None: true}, nil
}

func (stubOracle) Checkpoint(context.Context, *plan.Plan, []execution.StepResult, string) (oracle.Verdict, error) {
	return oracle.VerdictContinue, nil
}

type stubTools struct {
	names []string
	err   error
}

func (s stubTools) ListTools(context.Context) ([]string, error) {
	return s.names, s.err
}

func newAPI(t *testing.T, runner toolrunner.Runner) chi.Router {
	t.Helper()
	engCfg := config.Engine{
		MaxRetries:              1,
		MaxAdaptations:          1,
		ToolTimeout:             time.Second,
		OracleTimeout:           time.Second,
		ExtractionMinConfidence: 0.4,
		CheckpointMinSteps:      99, // no checkpoints in handler tests
	}
	o := stubOracle{}
	hub := ws.NewHub()
	ledger := service.NewLedger(memory.NewStore(), nil, time.Minute)
	resolver := service.NewParameterResolver(o, nil, engCfg.ExtractionMinConfidence, engCfg.OracleTimeout)
	executor := service.NewStepExecutor(runner, o, resolver, engCfg, nil)
	checkpoint := service.NewCheckpointService(o, engCfg.OracleTimeout, engCfg.CheckpointMinSteps)
	engine := service.NewEngine(executor, checkpoint, ledger, nil, hub, nil)

	h := &stridehttp.Handlers{
		Engine: engine,
		Ledger: ledger,
		Router: service.NewRouter(confidence.DefaultThresholds()),
		Hub:    hub,
		Tools:  stubTools{names: []string{"fetch_report", "summarize"}},
	}

	r := chi.NewRouter()
	stridehttp.MountRoutes(r, h)
	return r
}

func okRunner() toolrunner.Runner {
	return toolrunner.Func(func(_ context.Context, action string, _ map[string]any) (any, error) {
		return fmt.Sprintf("%s done", action), nil
	})
}

func planBody(confidence float64) []byte {
	p := plan.Plan{
		Goal:       "produce the quarterly summary",
		Confidence: confidence,
		Steps: []plan.Step{
			{ID: "s1", Order: 1, Action: "fetch_report", Parameters: map[string]any{"quarter": "Q3"}},
			{ID: "s2", Order: 2, Action: "summarize", Parameters: map[string]any{"style": "short"}, DependsOn: []string{"s1"}},
		},
	}
	body, _ := json.Marshal(p)
	return body
}

func doJSON(t *testing.T, r chi.Router, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func TestSubmitPlan_AssignsVersions(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, body := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.9))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["version"] != float64(1) {
		t.Fatalf("expected version 1, got %v", body["version"])
	}

	rec, body = doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.9))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on resubmit, got %d", rec.Code)
	}
	if body["version"] != float64(2) {
		t.Fatalf("expected version 2, got %v", body["version"])
	}
}

func TestSubmitPlan_MalformedRejected(t *testing.T) {
	api := newAPI(t, okRunner())

	p := plan.Plan{Goal: "goal without steps"}
	body, _ := json.Marshal(p)
	rec, _ := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSubmitPlan_BadJSON(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, _ := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", []byte("{not json"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitCritique_RequiresPlanID(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, _ := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/critiques", []byte(`{"overall_score":0.8}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without plan_id, got %d", rec.Code)
	}

	rec, body := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/critiques",
		[]byte(`{"plan_id":"p1","overall_score":0.8,"recommendation":"execute"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["version"] != float64(1) {
		t.Fatalf("expected critique version 1, got %v", body["version"])
	}
}

func TestRoutePlan(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, _ := doJSON(t, api, http.MethodGet, "/api/v1/requests/req-1/route", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a plan, got %d", rec.Code)
	}

	doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.9))
	rec, body := doJSON(t, api, http.MethodGet, "/api/v1/requests/req-1/route", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["decision"] != "execute" {
		t.Fatalf("expected execute decision, got %v", body["decision"])
	}
}

func TestExecutePlan_RunsLatestPlan(t *testing.T) {
	api := newAPI(t, okRunner())

	doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.9))
	rec, body := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/execute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected execution result in response, got %v", body)
	}
	if result["overall_success"] != true {
		t.Fatalf("expected overall_success, got %v", result)
	}
	if result["execution_version"] != float64(1) {
		t.Fatalf("expected execution version 1, got %v", result["execution_version"])
	}
	rc, ok := body["request"].(map[string]any)
	if !ok {
		t.Fatalf("expected request context in response, got %v", body)
	}
	if rc["status"] != string(request.StatusCompleted) {
		t.Fatalf("request status = %v, want completed", rc["status"])
	}
	chain, _ := rc["agent_chain"].([]any)
	if len(chain) != 2 || chain[0] != "routing" || chain[1] != "execution" {
		t.Fatalf("agent chain = %v, want [routing execution]", chain)
	}

	rec, _ = doJSON(t, api, http.MethodGet, "/api/v1/requests/req-1/executions/latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stored execution, got %d", rec.Code)
	}
}

func TestExecutePlan_NoPlan(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, _ := doJSON(t, api, http.MethodPost, "/api/v1/requests/missing/execute", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestExecutePlan_RoutingGate(t *testing.T) {
	api := newAPI(t, okRunner())

	// Planner confidence 0.3 lands in the rethink band.
	doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.3))

	rec, body := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/execute", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for low-confidence plan, got %d", rec.Code)
	}
	if body["routing"] == nil {
		t.Fatal("expected routing outcome in conflict response")
	}

	rec, _ = doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/execute", []byte(`{"force":true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when forced, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestResumePlan_Validation(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, _ := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/resume", []byte(`{"answers":{}}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without answers, got %d", rec.Code)
	}

	rec, _ = doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/resume", []byte(`{"answers":{"q1":"use Q3"}}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with nothing to resume, got %d", rec.Code)
	}
}

func TestListArtifacts(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, _ := doJSON(t, api, http.MethodGet, "/api/v1/requests/req-1/plans", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before ingestion, got %d", rec.Code)
	}

	doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.9))
	doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.95))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/req-1/plans", nil)
	recList := httptest.NewRecorder()
	api.ServeHTTP(recList, req)
	if recList.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recList.Code)
	}
	var plans []plan.Plan
	if err := json.Unmarshal(recList.Body.Bytes(), &plans); err != nil {
		t.Fatalf("decode plans: %v", err)
	}
	if len(plans) != 2 || plans[0].Version != 1 || plans[1].Version != 2 {
		t.Fatalf("expected versions [1 2], got %+v", plans)
	}
}

func TestListQuestions_AfterHalt(t *testing.T) {
	// Unknown tool error with no adaptation available halts with a question.
	runner := toolrunner.Func(func(_ context.Context, action string, _ map[string]any) (any, error) {
		if action == "fetch_report" {
			return nil, errors.New("unknown tool: fetch_report")
		}
		return "ok", nil
	})
	api := newAPI(t, runner)

	doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/plans", planBody(0.9))
	rec, body := doJSON(t, api, http.MethodPost, "/api/v1/requests/req-1/execute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result, _ := body["result"].(map[string]any)
	if result["requires_user_feedback"] != true {
		t.Fatalf("expected feedback required, got %v", body)
	}
	// A halted run stays in progress until its questions are answered.
	rc, _ := body["request"].(map[string]any)
	if rc["status"] != string(request.StatusInProgress) {
		t.Fatalf("request status = %v, want in_progress", rc["status"])
	}

	rec, body = doJSON(t, api, http.MethodGet, "/api/v1/requests/req-1/questions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["requires_user_feedback"] != true {
		t.Fatal("expected outstanding questions")
	}
	questions, ok := body["questions"].([]any)
	if !ok || len(questions) != 1 {
		t.Fatalf("expected one outstanding question, got %v", body["questions"])
	}
}

func TestListTools(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, body := doJSON(t, api, http.MethodGet, "/api/v1/tools", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	tools, ok := body["tools"].([]any)
	if !ok || len(tools) != 2 {
		t.Fatalf("expected two tools, got %v", body["tools"])
	}
}

func TestHealth(t *testing.T) {
	api := newAPI(t, okRunner())

	rec, body := doJSON(t, api, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", body["status"])
	}
}
