// internal/alerting/alerter.go
package alerting

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"loan-underwriter/internal/common/config"
	"loan-underwriter/internal/common/errors"
	commonhttp "loan-underwriter/internal/common/http"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

const defaultWebhookTimeout = 5 * time.Second

// SESService is the slice of the SES client the alerter needs.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SNSService is the slice of the SNS client the alerter needs.
type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Alerter notifies operators about evaluations that need human attention:
// capability failures and approvals at or above the high-risk threshold.
// Alerting is best effort; a failed notification never affects a decision.
type Alerter struct {
	cfg    config.NotificationConfig
	http   *commonhttp.Client
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

// New creates an alerter. The SES and SNS clients may be nil when those
// channels are disabled.
func New(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Alerter {
	timeout := time.Duration(cfg.Webhook.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Alerter{
		cfg:    cfg,
		http:   commonhttp.NewClient(timeout),
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "alerter"}),
	}
}

// NotifyFailure alerts on evaluations that ended in a capability failure.
// Validation failures are the caller's problem and stay quiet.
func (a *Alerter) NotifyFailure(ctx context.Context, requestID string, stdErr *errors.StandardError) {
	if !a.cfg.Enabled || !errors.IsCapabilityFailure(stdErr) {
		return
	}

	facts := map[string]string{
		"Request ID": requestID,
		"Error Code": string(stdErr.Code),
		"Retryable":  strconv.FormatBool(stdErr.Retryable),
	}
	title := "Loan evaluation failed"
	text := stdErr.Message

	a.send(ctx, title, text, "CC0000", facts,
		fmt.Sprintf("Evaluation %s failed: %s (%s)", requestID, stdErr.Message, stdErr.Code))
}

// NotifyDecision alerts on approvals at or above the high-risk threshold.
// Every other outcome stays quiet.
func (a *Alerter) NotifyDecision(ctx context.Context, outcome *models.LoanOutcome) {
	if !a.cfg.Enabled || a.cfg.HighRiskScore <= 0 {
		return
	}
	if outcome.Decision.Decision != models.DecisionApproved || outcome.Decision.RiskScore == nil {
		return
	}
	riskScore := *outcome.Decision.RiskScore
	if riskScore < a.cfg.HighRiskScore {
		return
	}

	facts := map[string]string{
		"Request ID": outcome.RequestID,
		"Risk Score": strconv.Itoa(riskScore),
	}
	if outcome.Decision.InterestRate != nil {
		facts["Interest Rate"] = fmt.Sprintf("%.2f%%", *outcome.Decision.InterestRate)
	}
	if outcome.Decision.RecommendedAmount != nil {
		facts["Amount"] = fmt.Sprintf("$%.2f", *outcome.Decision.RecommendedAmount)
	}
	title := "High-risk loan approved"
	text := fmt.Sprintf("Request %s was approved with risk score %d", outcome.RequestID, riskScore)

	a.send(ctx, title, text, "FFA500", facts, text)
}

// send fans the alert out to every configured channel. Channel failures
// are logged and swallowed.
func (a *Alerter) send(ctx context.Context, title, text, themeColor string, facts map[string]string, shortText string) {
	if a.cfg.Webhook.URL != "" {
		if err := a.http.PostJSON(ctx, a.cfg.Webhook.URL, buildCard(title, text, themeColor, facts)); err != nil {
			a.logger.Warn("Webhook alert failed", map[string]interface{}{
				"title": title,
				"error": err.Error(),
			})
		}
	}
	if a.cfg.Email.Enabled && a.ses != nil && len(a.cfg.Email.ToEmails) > 0 {
		if err := a.sendEmail(ctx, title, shortText); err != nil {
			a.logger.Warn("Email alert failed", map[string]interface{}{
				"title": title,
				"error": err.Error(),
			})
		}
	}
	if a.cfg.SMS.Enabled && a.sns != nil && a.cfg.SMS.TopicARN != "" {
		if err := a.sendSMS(ctx, shortText); err != nil {
			a.logger.Warn("SMS alert failed", map[string]interface{}{
				"title": title,
				"error": err.Error(),
			})
		}
	}
}

func (a *Alerter) sendEmail(ctx context.Context, subject, body string) error {
	_, err := a.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: a.cfg.Email.ToEmails,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(a.cfg.Email.FromEmail),
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("email", err)
	}
	return nil
}

func (a *Alerter) sendSMS(ctx context.Context, message string) error {
	_, err := a.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.cfg.SMS.TopicARN),
		Message:  aws.String(message),
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}

// buildCard assembles a MessageCard payload. Facts are sorted by name so
// the card renders the same way every time.
func buildCard(title, text, themeColor string, facts map[string]string) map[string]interface{} {
	names := make([]string, 0, len(facts))
	for name := range facts {
		names = append(names, name)
	}
	sort.Strings(names)

	factList := make([]map[string]string, 0, len(names))
	for _, name := range names {
		factList = append(factList, map[string]string{
			"name":  name,
			"value": facts[name],
		})
	}

	return map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "https://schema.org/extensions",
		"title":      title,
		"text":       text,
		"themeColor": themeColor,
		"sections": []interface{}{
			map[string]interface{}{"facts": factList},
		},
	}
}
