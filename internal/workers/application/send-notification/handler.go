// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	awsclient "dar-workers/internal/common/aws"
	"dar-workers/internal/common/errors"
	"dar-workers/internal/common/logger"
	"dar-workers/internal/common/metrics"
	"dar-workers/internal/common/validation"
	"dar-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "send-notification"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Handler delivers DAR notifications. It serves BPMN jobs through Handle and
// post-commit events from the dispatcher through Notify.
type Handler struct {
	config      *Config
	db          *sql.DB
	contacts    *contactStore
	logger      logger.Logger
	errHandler  *errors.ErrorHandler
	sesClient   SESService
	snsClient   SNSService
	templates   map[string]models.NotificationTemplate
	inputSchema map[string]interface{}
	now         func() time.Time
}

// NewHandler wires the handler. cache may be nil; inputSchema may be nil to
// skip job variable validation.
func NewHandler(
	config *Config,
	db *sql.DB,
	cache redis.Cmdable,
	sesClient SESService,
	snsClient SNSService,
	inputSchema map[string]interface{},
	log logger.Logger,
) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      config,
		db:          db,
		contacts:    &contactStore{db: db, cache: cache, ttl: config.ContactCacheTTL, logger: log},
		logger:      log,
		errHandler:  errors.NewErrorHandler(log),
		sesClient:   sesClient,
		snsClient:   snsClient,
		templates:   loadTemplates(),
		inputSchema: inputSchema,
		now:         func() time.Time { return time.Now().UTC() },
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

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// Notify delivers a post-commit notification event.
func (h *Handler) Notify(ctx context.Context, event models.NotificationEvent) error {
	_, err := h.execute(ctx, &Input{
		RecipientIDs:  event.RecipientIDs,
		Category:      string(event.Category),
		Message:       event.Message,
		ApplicationID: event.RelatedID,
	})
	return err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	tmpl, ok := h.templates[input.Category]
	if !ok {
		return nil, errors.NewInvalidJobInputError(fmt.Sprintf("unknown notification category: %s", input.Category))
	}

	data := map[string]interface{}{
		"applicationId": input.ApplicationID,
		"category":      input.Category,
	}
	for k, v := range input.Metadata {
		data[k] = v
	}
	subject := renderTemplate(tmpl.Subject, data)
	body := input.Message
	if body == "" {
		body = subject
	}

	sentAt := h.now()
	out := &Output{SentAt: sentAt.Format(time.RFC3339)}
	delivered, failed := 0, 0
	var lastErr error

	for _, recipientID := range input.RecipientIDs {
		contact, err := h.contacts.lookup(ctx, recipientID)
		if err == errContactNotFound {
			h.logger.Warn("recipient not found", map[string]interface{}{
				"recipientId": recipientID,
				"category":    input.Category,
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		if h.config.EmailEnabled && contact.Email != "" {
			id, err := h.deliver(ctx, recipientID, input, ChannelEmail, sentAt, func() error {
				_, err := h.sesClient.SendEmail(ctx, awsclient.PlainEmail(h.config.FromEmail, contact.Email, subject, body))
				return err
			})
			if err != nil {
				failed++
				lastErr = err
			} else {
				delivered++
				out.NotificationIDs = append(out.NotificationIDs, id)
			}
		}

		if h.config.smsFor(input.Category) && contact.Phone != "" {
			id, err := h.deliver(ctx, recipientID, input, ChannelSMS, sentAt, func() error {
				_, err := h.snsClient.Publish(ctx, awsclient.SMS(contact.Phone, subject))
				return err
			})
			if err != nil {
				failed++
				lastErr = err
			} else {
				delivered++
				out.NotificationIDs = append(out.NotificationIDs, id)
			}
		}
	}

	switch {
	case delivered == 0 && failed > 0:
		return nil, errors.NewNotificationSendFailedError(input.Category, lastErr)
	case failed > 0:
		out.Status = StatusPartial
	case delivered > 0:
		out.Status = StatusSent
	default:
		out.Status = StatusDisabled
	}
	return out, nil
}

// deliver sends on one channel and records the attempt.
func (h *Handler) deliver(ctx context.Context, recipientID string, input *Input, channel string, at time.Time, send func() error) (string, error) {
	id := uuid.New().String()
	status := StatusSent
	err := send()
	if err != nil {
		status = StatusFailed
		h.logger.Error("notification send failed", map[string]interface{}{
			"error":       err,
			"channel":     channel,
			"recipientId": recipientID,
			"category":    input.Category,
		})
	}

	if _, dbErr := h.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, category, channel, status, related_id, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, recipientID, input.Category, channel, status, input.ApplicationID, at,
	); dbErr != nil {
		h.logger.Warn("failed to record notification", map[string]interface{}{
			"error":          dbErr,
			"notificationId": id,
		})
	}
	return id, err
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
