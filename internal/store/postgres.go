// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

const (
	insertDecisionSQL = `INSERT INTO loan_decisions (request_id, decision, risk_score, model_version, outcome, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (request_id) DO NOTHING`

	selectDecisionSQL = `SELECT outcome FROM loan_decisions WHERE request_id = $1`

	insertAuditSQL = `INSERT INTO audit_log (request_id, event, detail, created_at)
VALUES ($1, $2, $3, $4)`

	countDecisionsSQL = `SELECT decision, COUNT(*) FROM loan_decisions GROUP BY decision`

	avgProcessingSQL = `SELECT COALESCE(AVG((outcome->>'processing_time_ms')::numeric), 0) FROM loan_decisions`
)

// DecisionStore persists evaluation outcomes and the audit trail.
type DecisionStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewDecisionStore creates a store backed by the given database handle.
func NewDecisionStore(db *sql.DB, log logger.Logger) *DecisionStore {
	return &DecisionStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "decision-store"}),
	}
}

// SaveOutcome writes the outcome row. A request_id that already exists is
// left untouched, so replays never overwrite the first decision; the caller
// gets a DUPLICATE_REQUEST error it can downgrade to a non-event.
func (s *DecisionStore) SaveOutcome(ctx context.Context, outcome *models.LoanOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	var riskScore interface{}
	if outcome.Decision.RiskScore != nil {
		riskScore = *outcome.Decision.RiskScore
	}

	res, err := s.db.ExecContext(ctx, insertDecisionSQL,
		outcome.RequestID,
		string(outcome.Decision.Decision),
		riskScore,
		outcome.ModelVersion,
		payload,
		outcome.Timestamp,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	if inserted, err := res.RowsAffected(); err == nil && inserted == 0 {
		return errors.NewDuplicateRequestError(outcome.RequestID)
	}
	return nil
}

// GetOutcome returns the stored outcome for a request, or nil when the
// request has not been decided yet.
func (s *DecisionStore) GetOutcome(ctx context.Context, requestID string) (*models.LoanOutcome, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectDecisionSQL, requestID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}

	var outcome models.LoanOutcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		return nil, fmt.Errorf("unmarshal stored outcome: %w", err)
	}
	return &outcome, nil
}

// AppendAudit records an audit trail entry for a request.
func (s *DecisionStore) AppendAudit(ctx context.Context, requestID, event, detail string) error {
	_, err := s.db.ExecContext(ctx, insertAuditSQL, requestID, event, detail, time.Now().UTC())
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// DecisionCounts returns how many stored outcomes exist per decision type.
func (s *DecisionStore) DecisionCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, countDecisionsSQL)
	if err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var decision string
		var count int64
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, fmt.Errorf("scan decision count: %w", err)
		}
		counts[decision] = count
	}
	return counts, rows.Err()
}

// AverageProcessingMS returns the mean pipeline latency across all stored
// outcomes, in milliseconds. Zero when the table is empty.
func (s *DecisionStore) AverageProcessingMS(ctx context.Context) (float64, error) {
	var avg float64
	if err := s.db.QueryRowContext(ctx, avgProcessingSQL).Scan(&avg); err != nil {
		return 0, fmt.Errorf("average processing time: %w", err)
	}
	return avg, nil
}
