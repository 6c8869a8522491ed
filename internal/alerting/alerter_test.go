// internal/alerting/alerter_test.go
package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
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

type fakeSES struct {
	mu     sync.Mutex
	inputs []*ses.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return &ses.SendEmailOutput{}, nil
}

type fakeSNS struct {
	mu     sync.Mutex
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, nil
}

type capturedCard struct {
	mu    sync.Mutex
	cards []map[string]interface{}
}

func (c *capturedCard) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var card map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&card)
		c.mu.Lock()
		c.cards = append(c.cards, card)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *capturedCard) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cards)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func createTestConfig(webhookURL string) config.NotificationConfig {
	cfg := config.NotificationConfig{
		Enabled:       true,
		HighRiskScore: 70,
	}
	cfg.Webhook.URL = webhookURL
	cfg.Webhook.Timeout = 2000
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "underwriting@example.com"
	cfg.Email.ToEmails = []string{"ops@example.com"}
	cfg.SMS.Enabled = true
	cfg.SMS.TopicARN = "arn:aws:sns:us-east-1:123456789012:loan-alerts"
	cfg.AWS.Region = "us-east-1"
	return cfg
}

func createHighRiskOutcome(riskScore int) *models.LoanOutcome {
	return &models.LoanOutcome{
		RequestID: "req-alert-001",
		Decision: models.LoanDecision{
			Decision:          models.DecisionApproved,
			RiskScore:         intPtr(riskScore),
			RecommendedAmount: floatPtr(15000),
			InterestRate:      floatPtr(12.5),
		},
		ModelVersion: "0.1.0",
		Timestamp:    time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Capability Failure Tests
// ==========================

func TestAlerter_NotifyFailure_SendsAllChannels(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	sesClient := &fakeSES{}
	snsClient := &fakeSNS{}
	a := New(createTestConfig(server.URL), sesClient, snsClient, logger.NewTestLogger(t))

	stdErr := errors.NewOracleTimeoutError(2 * time.Second)
	a.NotifyFailure(context.Background(), "req-alert-001", stdErr)

	require.Equal(t, 1, captured.count())
	card := captured.cards[0]
	assert.Equal(t, "MessageCard", card["@type"])
	assert.Equal(t, "Loan evaluation failed", card["title"])
	assert.Equal(t, "CC0000", card["themeColor"])
	assert.Contains(t, card["text"], "timed out")

	require.Len(t, sesClient.inputs, 1)
	email := sesClient.inputs[0]
	assert.Equal(t, []string{"ops@example.com"}, email.Destination.ToAddresses)
	assert.Equal(t, "underwriting@example.com", *email.Source)
	assert.Equal(t, "Loan evaluation failed", *email.Message.Subject.Data)
	assert.Contains(t, *email.Message.Body.Text.Data, "req-alert-001")

	require.Len(t, snsClient.inputs, 1)
	sms := snsClient.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:loan-alerts", *sms.TopicArn)
	assert.Contains(t, *sms.Message, "ORACLE_TIMEOUT")
}

func TestAlerter_NotifyFailure_IgnoresValidationErrors(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	sesClient := &fakeSES{}
	a := New(createTestConfig(server.URL), sesClient, &fakeSNS{}, logger.NewTestLogger(t))

	stdErr := errors.NewValidationFailedError("loan_details.amount must be positive")
	a.NotifyFailure(context.Background(), "req-alert-002", stdErr)

	assert.Equal(t, 0, captured.count())
	assert.Empty(t, sesClient.inputs)
}

func TestAlerter_NotifyFailure_Disabled(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.Enabled = false
	a := New(cfg, &fakeSES{}, &fakeSNS{}, logger.NewTestLogger(t))

	a.NotifyFailure(context.Background(), "req-alert-003", errors.NewOracleUnavailableError(context.DeadlineExceeded))

	assert.Equal(t, 0, captured.count())
}

// ==========================
// High-Risk Approval Tests
// ==========================

func TestAlerter_NotifyDecision_HighRiskApproval(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	a := New(createTestConfig(server.URL), &fakeSES{}, &fakeSNS{}, logger.NewTestLogger(t))

	a.NotifyDecision(context.Background(), createHighRiskOutcome(85))

	require.Equal(t, 1, captured.count())
	card := captured.cards[0]
	assert.Equal(t, "High-risk loan approved", card["title"])
	assert.Equal(t, "FFA500", card["themeColor"])

	sections := card["sections"].([]interface{})
	facts := sections[0].(map[string]interface{})["facts"].([]interface{})
	names := make([]string, 0, len(facts))
	for _, f := range facts {
		names = append(names, f.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"Amount", "Interest Rate", "Request ID", "Risk Score"}, names)
}

func TestAlerter_NotifyDecision_BelowThreshold(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	a := New(createTestConfig(server.URL), &fakeSES{}, &fakeSNS{}, logger.NewTestLogger(t))

	a.NotifyDecision(context.Background(), createHighRiskOutcome(13))

	assert.Equal(t, 0, captured.count())
}

func TestAlerter_NotifyDecision_AtThreshold(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	a := New(createTestConfig(server.URL), &fakeSES{}, &fakeSNS{}, logger.NewTestLogger(t))

	a.NotifyDecision(context.Background(), createHighRiskOutcome(70))

	assert.Equal(t, 1, captured.count())
}

func TestAlerter_NotifyDecision_IgnoresNonApprovals(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	a := New(createTestConfig(server.URL), &fakeSES{}, &fakeSNS{}, logger.NewTestLogger(t))

	reason := "Debt-to-income ratio 48.00% exceeds maximum allowed 43.00%"
	a.NotifyDecision(context.Background(), &models.LoanOutcome{
		RequestID: "req-alert-004",
		Decision: models.LoanDecision{
			Decision:          models.DecisionDisapproved,
			DisapprovalReason: &reason,
		},
	})

	assert.Equal(t, 0, captured.count())
}

func TestAlerter_NotifyDecision_ThresholdDisabled(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.HighRiskScore = 0
	a := New(cfg, &fakeSES{}, &fakeSNS{}, logger.NewTestLogger(t))

	a.NotifyDecision(context.Background(), createHighRiskOutcome(100))

	assert.Equal(t, 0, captured.count())
}

// ==========================
// Edge Cases
// ==========================

func TestAlerter_WebhookServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sesClient := &fakeSES{}
	a := New(createTestConfig(server.URL), sesClient, &fakeSNS{}, logger.NewTestLogger(t))

	// The webhook failure is logged; the other channels still fire.
	a.NotifyFailure(context.Background(), "req-alert-005", errors.NewOracleUnavailableError(context.DeadlineExceeded))

	assert.Len(t, sesClient.inputs, 1)
}

func TestAlerter_NilClientsSkipChannels(t *testing.T) {
	captured := &capturedCard{}
	server := httptest.NewServer(captured.handler())
	defer server.Close()

	a := New(createTestConfig(server.URL), nil, nil, logger.NewTestLogger(t))

	a.NotifyFailure(context.Background(), "req-alert-006", errors.NewOracleTimeoutError(time.Second))

	assert.Equal(t, 1, captured.count())
}

func TestBuildCard(t *testing.T) {
	card := buildCard("Title", "Body text", "CC0000", map[string]string{
		"Zebra": "z",
		"Alpha": "a",
	})

	assert.Equal(t, "MessageCard", card["@type"])
	assert.Equal(t, "https://schema.org/extensions", card["@context"])
	assert.Equal(t, "Title", card["title"])
	assert.Equal(t, "Body text", card["text"])
	assert.Equal(t, "CC0000", card["themeColor"])

	sections := card["sections"].([]interface{})
	require.Len(t, sections, 1)
	facts := sections[0].(map[string]interface{})["facts"].([]map[string]string)
	require.Len(t, facts, 2)
	assert.Equal(t, "Alpha", facts[0]["name"])
	assert.Equal(t, "Zebra", facts[1]["name"])
}
