// internal/api/handlers_test.go
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-underwriter/internal/common/config"
	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func intPtr(v int) *int { return &v }

type fakeEvaluator struct {
	outcome *models.LoanOutcome
	err     error
	lastReq models.LoanRequest
}

func (f *fakeEvaluator) Process(ctx context.Context, req models.LoanRequest) (*models.LoanOutcome, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakeProber struct {
	elapsed time.Duration
	err     error
}

func (f *fakeProber) HealthCheck(ctx context.Context) (time.Duration, error) {
	return f.elapsed, f.err
}

type fakePolicies struct {
	loaded bool
	count  int
}

func (f *fakePolicies) Loaded() bool       { return f.loaded }
func (f *fakePolicies) DocumentCount() int { return f.count }

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeDecisions struct {
	counts    map[string]int64
	avg       float64
	countsErr error
}

func (f *fakeDecisions) DecisionCounts(ctx context.Context) (map[string]int64, error) {
	return f.counts, f.countsErr
}

func (f *fakeDecisions) AverageProcessingMS(ctx context.Context) (float64, error) {
	return f.avg, nil
}

func createTestOutcome() *models.LoanOutcome {
	return &models.LoanOutcome{
		RequestID: "req-api-001",
		Decision: models.LoanDecision{
			Decision:  models.DecisionApproved,
			RiskScore: intPtr(13),
		},
		ModelVersion: "0.1.0",
		Timestamp:    time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func createTestHandlers(t *testing.T, opts HandlerOptions) *Handlers {
	t.Helper()
	if opts.App.Name == "" {
		opts.App = config.AppConfig{Name: "loan-underwriter", Version: "1.0.0", Environment: "test"}
	}
	if opts.ModelVersion == "" {
		opts.ModelVersion = "0.1.0"
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewTestLogger(t)
	}
	return NewHandlers(opts)
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// ==========================
// Service Info Tests
// ==========================

func TestHandlers_Root(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{})

	rec, body := doJSON(t, h.Root, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loan-underwriter", body["service"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "running", body["status"])
}

// ==========================
// Health Tests
// ==========================

func TestHandlers_Health_AllComponentsUp(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Oracle:   &fakeProber{elapsed: 42 * time.Millisecond},
		Policies: &fakePolicies{loaded: true, count: 4},
		DB:       &fakePinger{},
		Cache:    &fakePinger{},
	})

	rec, body := doJSON(t, h.Health, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	components := body["components"].(map[string]interface{})
	assert.Equal(t, true, components["oracle_responsive"])
	assert.Equal(t, 42.0, components["oracle_response_time_ms"])
	assert.Equal(t, true, components["policies_loaded"])
	assert.Equal(t, 4.0, components["policy_documents"])
	assert.Equal(t, true, components["store"])
	assert.Equal(t, true, components["cache"])
}

func TestHandlers_Health_OracleDown(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Oracle:   &fakeProber{err: errors.NewOracleUnavailableError(stderrors.New("dial tcp: refused"))},
		Policies: &fakePolicies{loaded: true, count: 4},
	})

	rec, body := doJSON(t, h.Health, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.NotEmpty(t, body["error"])

	components := body["components"].(map[string]interface{})
	assert.Equal(t, false, components["oracle_responsive"])
}

func TestHandlers_Health_PoliciesMissing(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Oracle:   &fakeProber{elapsed: 10 * time.Millisecond},
		Policies: &fakePolicies{loaded: false},
	})

	rec, body := doJSON(t, h.Health, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHandlers_Health_SinkOutageStaysHealthy(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Oracle:   &fakeProber{elapsed: 10 * time.Millisecond},
		Policies: &fakePolicies{loaded: true, count: 2},
		DB:       &fakePinger{err: stderrors.New("connection refused")},
		Cache:    &fakePinger{err: stderrors.New("connection refused")},
	})

	rec, body := doJSON(t, h.Health, http.MethodGet, "/health", "")

	// Sinks degrade gracefully; only the oracle and policies gate health.
	assert.Equal(t, http.StatusOK, rec.Code)
	components := body["components"].(map[string]interface{})
	assert.Equal(t, false, components["store"])
	assert.Equal(t, false, components["cache"])
}

func TestHandlers_Health_OmitsUnconfiguredSinks(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Oracle:   &fakeProber{elapsed: 10 * time.Millisecond},
		Policies: &fakePolicies{loaded: true, count: 1},
	})

	rec, body := doJSON(t, h.Health, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	components := body["components"].(map[string]interface{})
	assert.NotContains(t, components, "store")
	assert.NotContains(t, components, "cache")
}

// ==========================
// Readiness Tests
// ==========================

func TestHandlers_Ready(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{Processor: &fakeEvaluator{outcome: createTestOutcome()}})

	rec, body := doJSON(t, h.Ready, http.MethodGet, "/ready", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestHandlers_Ready_NoProcessor(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{})

	rec, body := doJSON(t, h.Ready, http.MethodGet, "/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
}

// ==========================
// Evaluation Endpoint Tests
// ==========================

func TestHandlers_Evaluate_Success(t *testing.T) {
	evaluator := &fakeEvaluator{outcome: createTestOutcome()}
	h := createTestHandlers(t, HandlerOptions{Processor: evaluator})

	rec, body := doJSON(t, h.Evaluate, http.MethodPost, "/api/v1/loan/evaluate",
		`{"request_id": "req-api-001", "loan_details": {"amount": 250000}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-api-001", body["request_id"])

	decision := body["decision"].(map[string]interface{})
	assert.Equal(t, "approved", decision["decision"])
	assert.Equal(t, 13.0, decision["risk_score"])

	assert.Equal(t, "req-api-001", evaluator.lastReq.RequestID)
	assert.Equal(t, 250000.0, evaluator.lastReq.LoanDetails.Amount)
}

func TestHandlers_Evaluate_MalformedBody(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{Processor: &fakeEvaluator{}})

	rec, body := doJSON(t, h.Evaluate, http.MethodPost, "/api/v1/loan/evaluate", `{"request_id": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
}

func TestHandlers_Evaluate_ValidationFailure(t *testing.T) {
	validationErr := errors.NewValidationFailedError("applicant.ssn must match format XXX-XX-XXXX").
		WithMetadata("violations", []string{"applicant.ssn must match format XXX-XX-XXXX"})
	h := createTestHandlers(t, HandlerOptions{Processor: &fakeEvaluator{err: validationErr}})

	rec, body := doJSON(t, h.Evaluate, http.MethodPost, "/api/v1/loan/evaluate", `{"request_id": "req-api-002"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])

	metadata := errBody["metadata"].(map[string]interface{})
	violations := metadata["violations"].([]interface{})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "applicant.ssn")
}

func TestHandlers_Evaluate_CapabilityFailure(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Processor: &fakeEvaluator{err: errors.NewOracleTimeoutError(30 * time.Second)},
	})

	rec, body := doJSON(t, h.Evaluate, http.MethodPost, "/api/v1/loan/evaluate", `{"request_id": "req-api-003"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "ORACLE_TIMEOUT", errBody["code"])
	assert.Equal(t, true, errBody["retryable"])
}

func TestHandlers_Evaluate_InternalFailure(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Processor: &fakeEvaluator{err: stderrors.New("unexpected")},
	})

	rec, body := doJSON(t, h.Evaluate, http.MethodPost, "/api/v1/loan/evaluate", `{"request_id": "req-api-004"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "INTERNAL_ERROR", errBody["code"])
}

func TestHandlers_Evaluate_NoProcessor(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{})

	rec, _ := doJSON(t, h.Evaluate, http.MethodPost, "/api/v1/loan/evaluate", `{"request_id": "req-api-005"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ==========================
// Decision Summary Tests
// ==========================

func TestHandlers_DecisionSummary(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Decisions: &fakeDecisions{
			counts: map[string]int64{"approved": 128, "disapproved": 34, "additional_info_needed": 7},
			avg:    1842.5,
		},
	})

	rec, body := doJSON(t, h.DecisionSummary, http.MethodGet, "/api/v1/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loan-underwriter", body["service"])
	assert.Equal(t, "test", body["environment"])
	assert.Equal(t, "0.1.0", body["model_version"])
	assert.Equal(t, 169.0, body["total_evaluations"])
	assert.Equal(t, 1842.5, body["avg_processing_time_ms"])

	decisions := body["decisions"].(map[string]interface{})
	assert.Equal(t, 128.0, decisions["approved"])
}

func TestHandlers_DecisionSummary_NoStore(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{})

	rec, body := doJSON(t, h.DecisionSummary, http.MethodGet, "/api/v1/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.1.0", body["model_version"])
	assert.NotContains(t, body, "decisions")
}

func TestHandlers_DecisionSummary_StoreError(t *testing.T) {
	h := createTestHandlers(t, HandlerOptions{
		Decisions: &fakeDecisions{countsErr: stderrors.New("relation does not exist")},
	})

	rec, _ := doJSON(t, h.DecisionSummary, http.MethodGet, "/api/v1/metrics", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
