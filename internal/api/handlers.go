// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"loan-underwriter/internal/common/config"
	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/common/redact"
	"loan-underwriter/internal/models"
)

// healthProbeTimeout bounds the oracle round trip inside /health.
const healthProbeTimeout = 5 * time.Second

// Evaluator runs a loan evaluation. Satisfied by *underwriter.Processor.
type Evaluator interface {
	Process(ctx context.Context, req models.LoanRequest) (*models.LoanOutcome, error)
}

// OracleProber reports whether the compliance model answers and how fast.
type OracleProber interface {
	HealthCheck(ctx context.Context) (time.Duration, error)
}

// PolicyStatus reports the state of the loaded policy snapshot.
type PolicyStatus interface {
	Loaded() bool
	DocumentCount() int
}

// Pinger checks connectivity of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DecisionReader serves the aggregate decision summary.
type DecisionReader interface {
	DecisionCounts(ctx context.Context) (map[string]int64, error)
	AverageProcessingMS(ctx context.Context) (float64, error)
}

// HandlerOptions carries the collaborators for the HTTP surface. A nil
// collaborator degrades its endpoint instead of failing construction.
type HandlerOptions struct {
	App          config.AppConfig
	ModelVersion string
	Processor    Evaluator
	Oracle       OracleProber
	Policies     PolicyStatus
	DB           Pinger
	Cache        Pinger
	Decisions    DecisionReader
	Logger       logger.Logger
}

// Handlers implements the HTTP endpoints.
type Handlers struct {
	app          config.AppConfig
	modelVersion string
	processor    Evaluator
	oracle       OracleProber
	policies     PolicyStatus
	db           Pinger
	cache        Pinger
	decisions    DecisionReader
	logger       logger.Logger
}

func NewHandlers(opts HandlerOptions) *Handlers {
	return &Handlers{
		app:          opts.App,
		modelVersion: opts.ModelVersion,
		processor:    opts.Processor,
		oracle:       opts.Oracle,
		policies:     opts.Policies,
		db:           opts.DB,
		cache:        opts.Cache,
		decisions:    opts.Decisions,
		logger:       opts.Logger.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Root serves basic service identification.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": h.app.Name,
		"version": h.app.Version,
		"status":  "running",
	})
}

type healthComponents struct {
	OracleResponsive     bool     `json:"oracle_responsive"`
	OracleResponseTimeMS *float64 `json:"oracle_response_time_ms,omitempty"`
	PoliciesLoaded       bool     `json:"policies_loaded"`
	PolicyDocuments      int      `json:"policy_documents"`
	Store                *bool    `json:"store,omitempty"`
	Cache                *bool    `json:"cache,omitempty"`
}

type healthResponse struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	Timestamp  time.Time        `json:"timestamp"`
	Components healthComponents `json:"components"`
	Error      string           `json:"error,omitempty"`
}

// Health reports component status. Only the oracle and the policy snapshot
// gate the overall verdict: evaluations cannot run without them, while the
// sinks degrade gracefully and are reported informationally.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "healthy",
		Version:   h.app.Version,
		Timestamp: time.Now().UTC(),
	}

	if h.oracle != nil {
		elapsed, err := h.oracle.HealthCheck(ctx)
		if err != nil {
			resp.Error = err.Error()
		} else {
			ms := float64(elapsed.Microseconds()) / 1000.0
			resp.Components.OracleResponsive = true
			resp.Components.OracleResponseTimeMS = &ms
		}
	}

	if h.policies != nil {
		resp.Components.PoliciesLoaded = h.policies.Loaded()
		resp.Components.PolicyDocuments = h.policies.DocumentCount()
	}

	if h.db != nil {
		up := h.db.Ping(ctx) == nil
		resp.Components.Store = &up
	}
	if h.cache != nil {
		up := h.cache.Ping(ctx) == nil
		resp.Components.Cache = &up
	}

	if !resp.Components.OracleResponsive || !resp.Components.PoliciesLoaded {
		resp.Status = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready answers readiness probes.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Evaluate runs one loan application through the pipeline.
func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		writeError(w, http.StatusServiceUnavailable,
			errors.NewInternalError(fmt.Errorf("evaluation pipeline not initialized")))
		return
	}

	var req models.LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			errors.NewValidationFailedError(fmt.Sprintf("malformed request body: %v", err)))
		return
	}

	h.logger.Info("Received loan evaluation request", redact.SanitizeFields(map[string]interface{}{
		"requestId": req.RequestID,
		"email":     req.Applicant.Email,
		"amount":    req.LoanDetails.Amount,
		"purpose":   string(req.LoanDetails.Purpose),
	}))

	outcome, err := h.processor.Process(r.Context(), req)
	if err != nil {
		stdErr := errors.FromError(err)
		switch {
		case errors.IsValidationError(stdErr):
			writeError(w, http.StatusBadRequest, stdErr)
		case errors.IsCapabilityFailure(stdErr):
			writeError(w, http.StatusBadGateway, stdErr)
		default:
			writeError(w, http.StatusInternalServerError, stdErr)
		}
		return
	}

	h.logger.Info("Loan evaluation completed", map[string]interface{}{
		"requestId": outcome.RequestID,
		"decision":  string(outcome.Decision.Decision),
	})
	writeJSON(w, http.StatusOK, outcome)
}

// DecisionSummary serves aggregate decision counts and latency.
func (h *Handlers) DecisionSummary(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"service":       h.app.Name,
		"environment":   h.app.Environment,
		"model_version": h.modelVersion,
	}

	if h.decisions != nil {
		counts, err := h.decisions.DecisionCounts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.NewInternalError(err))
			return
		}
		avg, err := h.decisions.AverageProcessingMS(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.NewInternalError(err))
			return
		}

		var total int64
		for _, c := range counts {
			total += c
		}
		resp["decisions"] = counts
		resp["total_evaluations"] = total
		resp["avg_processing_time_ms"] = avg
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, stdErr *errors.StandardError) {
	writeJSON(w, status, map[string]interface{}{"error": stdErr})
}
