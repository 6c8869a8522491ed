// internal/underwriter/processor_test.go
package underwriter

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeDecider struct {
	outcome *models.LoanOutcome
	err     error
	calls   int
	lastReq models.LoanRequest
}

func (f *fakeDecider) Evaluate(ctx context.Context, req models.LoanRequest) (*models.LoanOutcome, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakeStore struct {
	stored   *models.LoanOutcome
	getErr   error
	saveErr  error
	auditErr error
	saved    []*models.LoanOutcome
	audits   []string
}

func (f *fakeStore) GetOutcome(ctx context.Context, requestID string) (*models.LoanOutcome, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.stored, nil
}

func (f *fakeStore) SaveOutcome(ctx context.Context, outcome *models.LoanOutcome) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, outcome)
	return nil
}

func (f *fakeStore) AppendAudit(ctx context.Context, requestID, event, detail string) error {
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audits = append(f.audits, fmt.Sprintf("%s:%s", event, detail))
	return nil
}

type fakeCache struct {
	entries map[string]*models.LoanOutcome
	sets    []*models.LoanOutcome
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.LoanOutcome)}
}

func (f *fakeCache) Get(ctx context.Context, requestID string) *models.LoanOutcome {
	return f.entries[requestID]
}

func (f *fakeCache) Set(ctx context.Context, outcome *models.LoanOutcome) {
	f.sets = append(f.sets, outcome)
	f.entries[outcome.RequestID] = outcome
}

type fakeIndexer struct {
	indexed []*models.LoanOutcome
	err     error
}

func (f *fakeIndexer) Index(ctx context.Context, outcome *models.LoanOutcome) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, outcome)
	return nil
}

type fakePublisher struct {
	published []*models.LoanOutcome
	err       error
}

func (f *fakePublisher) PublishDecision(ctx context.Context, outcome *models.LoanOutcome) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, outcome)
	return nil
}

type fakeNotifier struct {
	decisions []*models.LoanOutcome
	failures  []*errors.StandardError
}

func (f *fakeNotifier) NotifyDecision(ctx context.Context, outcome *models.LoanOutcome) {
	f.decisions = append(f.decisions, outcome)
}

func (f *fakeNotifier) NotifyFailure(ctx context.Context, requestID string, stdErr *errors.StandardError) {
	f.failures = append(f.failures, stdErr)
}

type fakeObserver struct {
	decisions []string
	durations []time.Duration
}

func (f *fakeObserver) RecordEvaluation(ctx context.Context, decision string) {
	f.decisions = append(f.decisions, decision)
}

func (f *fakeObserver) RecordEvaluationDuration(ctx context.Context, duration time.Duration, decision string) {
	f.durations = append(f.durations, duration)
}

func intPtr(v int) *int { return &v }

func createOutcome() *models.LoanOutcome {
	return &models.LoanOutcome{
		RequestID: "req-proc-001",
		Decision: models.LoanDecision{
			Decision:  models.DecisionApproved,
			RiskScore: intPtr(13),
		},
		ModelVersion: "0.1.0",
		Timestamp:    time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func createRequest() models.LoanRequest {
	return models.LoanRequest{RequestID: "req-proc-001"}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestProcessor_Process_FreshEvaluation(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	store := &fakeStore{}
	cache := newFakeCache()
	indexer := &fakeIndexer{}
	publisher := &fakePublisher{}
	notifier := &fakeNotifier{}

	p := NewProcessor(decider, store, cache, indexer, publisher, notifier, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "req-proc-001", outcome.RequestID)
	assert.Equal(t, 1, decider.calls)

	assert.Len(t, store.saved, 1)
	assert.Equal(t, []string{"decision_rendered:approved"}, store.audits)
	assert.Len(t, cache.sets, 1)
	assert.Len(t, indexer.indexed, 1)
	assert.Len(t, publisher.published, 1)
	assert.Len(t, notifier.decisions, 1)
	assert.Empty(t, notifier.failures)
}

func TestProcessor_Process_CacheHit(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	store := &fakeStore{}
	cache := newFakeCache()
	cached := createOutcome()
	cache.entries["req-proc-001"] = cached

	p := NewProcessor(decider, store, cache, nil, nil, nil, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.NoError(t, err)
	assert.Same(t, cached, outcome)
	assert.Equal(t, 0, decider.calls, "cache hit must not re-run the pipeline")
	assert.Empty(t, store.saved)
}

func TestProcessor_Process_StoredOutcomeReplay(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	stored := createOutcome()
	store := &fakeStore{stored: stored}
	cache := newFakeCache()

	p := NewProcessor(decider, store, cache, nil, nil, nil, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.NoError(t, err)
	assert.Same(t, stored, outcome)
	assert.Equal(t, 0, decider.calls, "stored decision must not be re-evaluated")
	// The replayed outcome is backfilled into the cache.
	assert.Len(t, cache.sets, 1)
	assert.Empty(t, store.saved)
}

func TestProcessor_Process_StoreLookupFailureFallsThrough(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	store := &fakeStore{getErr: stderrors.New("connection reset")}

	p := NewProcessor(decider, store, nil, nil, nil, nil, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.NoError(t, err)
	assert.NotNil(t, outcome)
	assert.Equal(t, 1, decider.calls, "a broken replay lookup must not block evaluation")
}

// ==========================
// Failure Handling Tests
// ==========================

func TestProcessor_Process_EvaluationFailure(t *testing.T) {
	decider := &fakeDecider{err: errors.NewOracleTimeoutError(2 * time.Second)}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	p := NewProcessor(decider, store, nil, nil, nil, notifier, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.Nil(t, outcome)
	if assert.Error(t, err) {
		assert.True(t, errors.IsCapabilityFailure(err))
	}
	require.Len(t, notifier.failures, 1)
	assert.Equal(t, errors.ErrCodeOracleTimeout, notifier.failures[0].Code)
	assert.Empty(t, store.saved, "failed evaluations produce no outcome row")
}

func TestProcessor_Process_NormalizesPlainErrors(t *testing.T) {
	decider := &fakeDecider{err: stderrors.New("boom")}

	p := NewProcessor(decider, nil, nil, nil, nil, nil, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.Nil(t, outcome)
	stdErr, ok := err.(*errors.StandardError)
	if assert.True(t, ok) {
		assert.Equal(t, errors.ErrCodeInternal, stdErr.Code)
	}
}

func TestProcessor_Process_SinkFailuresDoNotBlockDecision(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	store := &fakeStore{saveErr: stderrors.New("disk full")}
	indexer := &fakeIndexer{err: stderrors.New("cluster red")}
	publisher := &fakePublisher{err: stderrors.New("broker down")}

	p := NewProcessor(decider, store, nil, indexer, publisher, nil, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.NoError(t, err)
	assert.NotNil(t, outcome)
}

func TestProcessor_Process_AuditFailureIsNonCritical(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	store := &fakeStore{auditErr: stderrors.New("table locked")}

	p := NewProcessor(decider, store, nil, nil, nil, nil, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.NoError(t, err)
	assert.NotNil(t, outcome)
	assert.Len(t, store.saved, 1, "the outcome row still lands when only the audit insert fails")
}

// ==========================
// Edge Cases
// ==========================

func TestProcessor_Process_AllSinksNil(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}

	p := NewProcessor(decider, nil, nil, nil, nil, nil, nil, logger.NewTestLogger(t))
	outcome, err := p.Process(context.Background(), createRequest())

	assert.NoError(t, err)
	assert.NotNil(t, outcome)
	assert.Equal(t, 1, decider.calls)
}

func TestProcessor_Process_GeneratesMissingRequestID(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	cache := newFakeCache()

	p := NewProcessor(decider, nil, cache, nil, nil, nil, nil, logger.NewTestLogger(t))
	_, err := p.Process(context.Background(), models.LoanRequest{RequestID: "  "})

	assert.NoError(t, err)
	assert.NotEmpty(t, decider.lastReq.RequestID)
	assert.NotEqual(t, "  ", decider.lastReq.RequestID)
	_, parseErr := uuid.Parse(decider.lastReq.RequestID)
	assert.NoError(t, parseErr)
}

func TestProcessor_Process_RecordsTelemetryForFreshDecisionsOnly(t *testing.T) {
	decider := &fakeDecider{outcome: createOutcome()}
	cache := newFakeCache()
	observer := &fakeObserver{}

	p := NewProcessor(decider, nil, cache, nil, nil, nil, observer, logger.NewTestLogger(t))

	_, err := p.Process(context.Background(), createRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"approved"}, observer.decisions)
	assert.Len(t, observer.durations, 1)

	// Second submission hits the cache and must not count again.
	_, err = p.Process(context.Background(), createRequest())
	require.NoError(t, err)
	assert.Len(t, observer.decisions, 1)
}
