// Package coordinator runs application operations against storage: load,
// resolve the caller, apply, save with a version check, and hand the
// resulting events to the dispatcher once the save has committed.
package coordinator

import (
	"context"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/common/logger"
	"dar-workers/internal/common/metrics"
	"dar-workers/internal/common/observability"
	"dar-workers/internal/engine/amendments"
	"dar-workers/internal/engine/review"
	"dar-workers/internal/models"
	"dar-workers/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Repository interface {
	Create(ctx context.Context, app *models.Application) (*models.Application, int, error)
	Load(ctx context.Context, id string) (*models.Application, int, error)
	Save(ctx context.Context, app *models.Application, expectedVersion int) (int, error)
}

type PermissionResolver interface {
	Resolve(ctx context.Context, userID string, app *models.Application) (models.Actor, error)
}

type Dispatcher interface {
	Dispatch(out *service.Outcome)
}

// Indexer is optional; indexing failures are logged only.
type Indexer interface {
	Index(ctx context.Context, app *models.Application, version int) error
}

// Operation applies one service call to a loaded application.
type Operation func(app *models.Application, actor models.Actor) (*service.Outcome, error)

// Options carries the tunables from configuration.
type Options struct {
	MaxAttempts         int
	DefaultDeadlineDays int
	DefaultReminderDays int
}

type Coordinator struct {
	repo       Repository
	perms      PermissionResolver
	svc        *service.ApplicationService
	dispatcher Dispatcher
	indexer    Indexer
	obs        *observability.Observability
	logger     logger.Logger
	opts       Options
	now        func() time.Time
}

func New(
	repo Repository,
	perms PermissionResolver,
	svc *service.ApplicationService,
	dispatcher Dispatcher,
	indexer Indexer,
	obs *observability.Observability,
	opts Options,
	log logger.Logger,
) *Coordinator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	return &Coordinator{
		repo:       repo,
		perms:      perms,
		svc:        svc,
		dispatcher: dispatcher,
		indexer:    indexer,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "coordinator"}),
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Result is a committed operation.
type Result struct {
	Application *models.Application
	Version     int
	Outcome     *service.Outcome
}

// Execute applies op to the application as userID. A version conflict on save
// reloads and reapplies the operation, up to MaxAttempts times in total.
func (c *Coordinator) Execute(ctx context.Context, name, applicationID, userID string, op Operation) (*Result, error) {
	ctx, span := c.obs.StartSpan(ctx, "coordinator."+name,
		attribute.String("applicationId", applicationID),
		attribute.String("userId", userID))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		res, err := c.apply(ctx, applicationID, userID, op)
		if err == nil {
			metrics.RecordOperation(name, "ok")
			span.SetAttributes(attribute.Int("attempts", attempt), attribute.Int("version", res.Version))
			c.commit(ctx, res)
			return res, nil
		}
		lastErr = err
		if !errors.IsVersionConflict(err) {
			break
		}
		metrics.VersionConflictRetries.WithLabelValues(name).Inc()
		c.logger.Warn("reapplying after version conflict", map[string]interface{}{
			"operation":     name,
			"applicationId": applicationID,
			"attempt":       attempt,
		})
	}

	metrics.RecordOperation(name, string(errors.CodeOf(lastErr)))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, string(errors.CodeOf(lastErr)))
	return nil, lastErr
}

func (c *Coordinator) apply(ctx context.Context, applicationID, userID string, op Operation) (*Result, error) {
	app, version, err := c.repo.Load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	actor, err := c.perms.Resolve(ctx, userID, app)
	if err != nil {
		return nil, err
	}

	out, err := op(app, actor)
	if err != nil {
		return nil, err
	}
	if out.NoOp {
		return &Result{Application: out.Application, Version: version, Outcome: out}, nil
	}

	newVersion, err := c.repo.Save(ctx, out.Application, version)
	if err != nil {
		return nil, err
	}
	return &Result{Application: out.Application, Version: newVersion, Outcome: out}, nil
}

// commit runs the post-save side effects. Neither can undo the save.
func (c *Coordinator) commit(ctx context.Context, res *Result) {
	if c.dispatcher != nil {
		c.dispatcher.Dispatch(res.Outcome)
	}
	if c.indexer != nil && !res.Outcome.NoOp {
		if err := c.indexer.Index(ctx, res.Application, res.Version); err != nil {
			c.logger.Warn("search indexing failed", map[string]interface{}{
				"error":         err,
				"applicationId": res.Application.ID,
			})
		}
	}
}

// Create stores a new application owned by userID.
func (c *Coordinator) Create(ctx context.Context, userID string, draft *models.Application) (*Result, error) {
	app := draft.Clone()
	app.UserID = userID
	app.Status = models.StatusInProgress
	if app.ApplicationType == "" {
		app.ApplicationType = models.ApplicationTypeInitial
	}
	if app.MajorVersion == 0 {
		app.MajorVersion = 1
	}
	if app.QuestionAnswers == nil {
		app.QuestionAnswers = map[string]interface{}{}
	}

	created, version, err := c.repo.Create(ctx, app)
	if err != nil {
		metrics.RecordOperation("create", string(errors.CodeOf(err)))
		return nil, err
	}
	metrics.RecordOperation("create", "ok")
	res := &Result{Application: created, Version: version, Outcome: &service.Outcome{Application: created}}
	c.commit(ctx, res)
	return res, nil
}

func (c *Coordinator) RequestAmendment(ctx context.Context, applicationID, userID string, in service.RequestAmendmentInput) (*Result, error) {
	return c.Execute(ctx, "request-amendment", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.RequestAmendment(app, actor, in)
	})
}

func (c *Coordinator) AnswerAmendment(ctx context.Context, applicationID, userID string, in amendments.AnswerInput) (*Result, error) {
	return c.Execute(ctx, "answer-amendment", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.AnswerAmendment(app, actor, in)
	})
}

func (c *Coordinator) RemoveAmendment(ctx context.Context, applicationID, userID, questionID string) (*Result, error) {
	return c.Execute(ctx, "remove-amendment", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.RemoveAmendment(app, actor, questionID)
	})
}

func (c *Coordinator) RevertAnswer(ctx context.Context, applicationID, userID, questionID string) (*Result, error) {
	return c.Execute(ctx, "revert-answer", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.RevertAnswer(app, actor, questionID)
	})
}

func (c *Coordinator) ReturnAmendments(ctx context.Context, applicationID, userID string) (*Result, error) {
	return c.Execute(ctx, "return-amendments", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.ReturnAmendments(app, actor)
	})
}

func (c *Coordinator) Submit(ctx context.Context, applicationID, userID string) (*Result, error) {
	return c.Execute(ctx, "submit", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.Submit(app, actor)
	})
}

func (c *Coordinator) StartApplicantAmendment(ctx context.Context, applicationID, userID string) (*Result, error) {
	return c.Execute(ctx, "start-applicant-amendment", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.StartApplicantAmendment(app, actor)
	})
}

func (c *Coordinator) Withdraw(ctx context.Context, applicationID, userID string) (*Result, error) {
	return c.Execute(ctx, "withdraw", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.Withdraw(app, actor)
	})
}

// StartReview fills unset step deadlines from the configured defaults before
// attaching the workflow.
func (c *Coordinator) StartReview(ctx context.Context, applicationID, userID string, workflow models.Workflow) (*Result, error) {
	wf := c.withReviewDefaults(workflow)
	return c.Execute(ctx, "start-review", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.StartReview(app, actor, wf)
	})
}

func (c *Coordinator) withReviewDefaults(workflow models.Workflow) models.Workflow {
	wf := workflow.Clone()
	for i := range wf.Steps {
		if wf.Steps[i].DeadlineDays == 0 {
			wf.Steps[i].DeadlineDays = c.opts.DefaultDeadlineDays
		}
		if wf.Steps[i].ReminderOffsetDays == 0 {
			wf.Steps[i].ReminderOffsetDays = c.opts.DefaultReminderDays
		}
	}
	return wf
}

func (c *Coordinator) CastVote(ctx context.Context, applicationID, userID string, in review.VoteInput) (*Result, error) {
	return c.Execute(ctx, "cast-vote", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.CastVote(app, actor, in)
	})
}

func (c *Coordinator) OverrideStep(ctx context.Context, applicationID, userID string) (*Result, error) {
	return c.Execute(ctx, "override-step", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.OverrideStep(app, actor)
	})
}

func (c *Coordinator) RecordDecision(ctx context.Context, applicationID, userID string, in service.DecisionInput) (*Result, error) {
	return c.Execute(ctx, "record-decision", applicationID, userID, func(app *models.Application, actor models.Actor) (*service.Outcome, error) {
		return c.svc.RecordDecision(app, actor, in)
	})
}

// CheckDeadlines evaluates the active step deadline and dispatches reminders.
// Nothing is saved.
func (c *Coordinator) CheckDeadlines(ctx context.Context, applicationID string) (*service.DeadlineCheck, error) {
	ctx, span := c.obs.StartSpan(ctx, "coordinator.check-deadlines", attribute.String("applicationId", applicationID))
	defer span.End()

	app, _, err := c.repo.Load(ctx, applicationID)
	if err != nil {
		metrics.RecordOperation("check-deadlines", string(errors.CodeOf(err)))
		return nil, err
	}
	check := c.svc.CheckDeadlines(app, c.now())
	metrics.RecordOperation("check-deadlines", "ok")
	span.SetAttributes(attribute.String("deadlineStatus", string(check.Status)))

	if c.dispatcher != nil && len(check.Outcome.Notifications) > 0 {
		c.dispatcher.Dispatch(check.Outcome)
	}
	return check, nil
}

// View returns the caller's projection of one version of the application.
func (c *Coordinator) View(ctx context.Context, applicationID, userID, version string) (*service.View, error) {
	app, _, err := c.repo.Load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	actor, err := c.perms.Resolve(ctx, userID, app)
	if err != nil {
		return nil, err
	}
	return c.svc.View(app, actor, version)
}
