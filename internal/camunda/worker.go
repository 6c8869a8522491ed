// internal/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/models"
)

const (
	// TaskType is the Zeebe job type the evaluation worker subscribes to.
	TaskType = "loan-evaluate"
)

// Evaluator runs a full loan evaluation. Satisfied by *underwriter.Processor.
type Evaluator interface {
	Process(ctx context.Context, req models.LoanRequest) (*models.LoanOutcome, error)
}

// Input is the variable set a loan-evaluate job arrives with. The process
// instance carries the intake payload under "request" untouched, so the
// engine sees exactly what the applicant system submitted.
type Input struct {
	Request models.LoanRequest `json:"request"`
}

// Output is written back to the process when the job completes. The decision
// field drives the routing gateway; the full outcome rides along for
// downstream tasks.
type Output struct {
	Decision     string              `json:"decision"`
	RiskScore    *int                `json:"riskScore,omitempty"`
	InterestRate *float64            `json:"interestRate,omitempty"`
	Outcome      *models.LoanOutcome `json:"outcome"`
}

// Handler processes loan-evaluate jobs.
type Handler struct {
	processor Evaluator
	zeebe     *Client
	timeout   time.Duration
	logger    logger.Logger
}

func NewHandler(processor Evaluator, zeebe *Client, timeout time.Duration, log logger.Logger) *Handler {
	return &Handler{
		processor: processor,
		zeebe:     zeebe,
		timeout:   timeout,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("Processing evaluation job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.throwError(client, job, "PARSE_ERROR", fmt.Sprintf("parse job variables: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	outcome, err := h.processor.Process(ctx, input.Request)
	if err != nil {
		d := classify(err, job.Retries)
		if d.throwBPMN {
			h.throwError(client, job, d.code, d.message)
		} else {
			h.failJob(client, job, d.message, d.retries)
		}
		return
	}

	h.completeJob(client, job, buildOutput(outcome))
}

// disposition describes how an evaluation failure is reported to the broker.
// Validation failures throw a BPMN error the process can route on; everything
// else fails the job so the broker redelivers it or raises an incident.
type disposition struct {
	throwBPMN bool
	code      string
	message   string
	retries   int32
}

func classify(err error, remaining int32) disposition {
	stdErr := errors.FromError(err)
	bpmnErr := errors.ConvertToBPMNError(stdErr)

	message := stdErr.Message
	if stdErr.Details != "" {
		message = fmt.Sprintf("%s: %s", stdErr.Message, stdErr.Details)
	}

	if errors.IsValidationError(stdErr) {
		return disposition{throwBPMN: true, code: bpmnErr.Code, message: message}
	}

	// Per-code budgets keep a slow oracle from burning the whole BPMN
	// retry allowance.
	retries := remaining - 1
	if retries > int32(bpmnErr.Retries) {
		retries = int32(bpmnErr.Retries)
	}
	if retries < 0 || !stdErr.Retryable {
		retries = 0
	}

	return disposition{code: bpmnErr.Code, message: message, retries: retries}
}

func buildOutput(outcome *models.LoanOutcome) *Output {
	return &Output{
		Decision:     string(outcome.Decision.Decision),
		RiskScore:    outcome.Decision.RiskScore,
		InterestRate: outcome.Decision.InterestRate,
		Outcome:      outcome,
	}
}

// completeJob sends the completion through the retrying client. A dropped
// completion would re-execute the job after its timeout, which the replay
// lookup absorbs, but retrying here avoids the detour.
func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to build complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = h.zeebe.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		return cmd.Send(ctx)
	}, "complete-job")
	if err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) throwError(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Warn("Job rejected with business error", map[string]interface{}{
		"jobKey":    job.Key,
		"errorCode": errorCode,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to throw BPMN error", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorMessage string, retries int32) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorMessage": errorMessage,
		"retriesLeft":  retries,
	})

	_, err := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to fail job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

// Worker owns the job subscription lifecycle for the evaluation task.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job subscription for loan-evaluate jobs.
func NewWorker(client *Client, handler *Handler, maxJobsActive int, jobTimeout time.Duration, log logger.Logger) *Worker {
	jobWorker := client.GetClient().NewJobWorker().
		JobType(TaskType).
		Handler(handler.Handle).
		MaxJobsActive(maxJobsActive).
		Timeout(jobTimeout).
		Open()

	log.Info("Evaluation worker started", map[string]interface{}{
		"taskType":      TaskType,
		"maxJobsActive": maxJobsActive,
	})

	return &Worker{
		worker:   jobWorker,
		logger:   log,
		taskType: TaskType,
	}
}

// Stop closes the job subscription. The shared gRPC connection is owned by
// the caller and stays open.
func (w *Worker) Stop() {
	w.logger.Info("Stopping evaluation worker", map[string]interface{}{
		"taskType": w.taskType,
	})
	w.worker.Close()
}
