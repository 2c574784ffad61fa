// internal/workers/review/check-step-deadline/handler.go
package checkstepdeadline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/common/logger"
	"dar-workers/internal/common/metrics"
	"dar-workers/internal/common/validation"
	"dar-workers/internal/service"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "check-step-deadline"
)

// DeadlineChecker evaluates the active step deadline of one application and
// dispatches any reminders.
type DeadlineChecker interface {
	CheckDeadlines(ctx context.Context, applicationID string) (*service.DeadlineCheck, error)
}

// Handler serves the timer-driven deadline job of the review process.
type Handler struct {
	config      *Config
	checker     DeadlineChecker
	logger      logger.Logger
	errHandler  *errors.ErrorHandler
	inputSchema map[string]interface{}
}

func NewHandler(config *Config, checker DeadlineChecker, inputSchema map[string]interface{}, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      config,
		checker:     checker,
		logger:      log,
		errHandler:  errors.NewErrorHandler(log),
		inputSchema: inputSchema,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	result, err := validation.ValidateJobVariables(h.inputSchema, job.Variables)
	if err == nil {
		err = result.Err()
	}
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errHandler.HandleJobError(ctx, client, job, errors.NewInvalidJobInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewInvalidJobInputError("applicationId is required")
	}

	check, err := h.checker.CheckDeadlines(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	out := &Output{DeadlineStatus: string(check.Status), StepName: check.StepName}
	if out.DeadlineStatus == "" {
		out.DeadlineStatus = StatusNone
	}
	if !check.Deadline.Expiry.IsZero() {
		out.Deadline = check.Deadline.Expiry.Format(time.RFC3339)
	}

	h.logger.Info("deadline checked", map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"stepName":       out.StepName,
		"deadlineStatus": out.DeadlineStatus,
	})
	return out, nil
}
