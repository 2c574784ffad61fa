// Package service orchestrates the amendment and review engines against one
// application value. It performs no I/O: notifications and process-engine
// requests are returned as data for the caller to dispatch after commit.
package service

import (
	"fmt"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/engine/amendments"
	"dar-workers/internal/engine/review"
	"dar-workers/internal/models"
)

// Outcome is the result of one applied operation.
type Outcome struct {
	Application      *models.Application
	Notifications    []models.NotificationEvent
	WorkflowRequests []models.WorkflowEngineRequest
	// NoOp marks a structurally unchanged application that needs no save.
	NoOp             bool
}

func (o *Outcome) notify(category models.NotificationCategory, recipients []string, relatedID, message string) {
	if len(recipients) == 0 {
		return
	}
	o.Notifications = append(o.Notifications, models.NotificationEvent{
		RecipientIDs: recipients,
		Message:      message,
		Category:     category,
		RelatedID:    relatedID,
	})
}

type ApplicationService struct {
	amendments *amendments.Engine
	review     *review.Engine
	now        func() time.Time
}

func New() *ApplicationService {
	return NewWithClock(func() time.Time { return time.Now().UTC() })
}

// NewWithClock shares one clock between both engines.
func NewWithClock(now func() time.Time) *ApplicationService {
	return &ApplicationService{
		amendments: amendments.NewWithClock(now),
		review:     review.NewWithClock(now),
		now:        now,
	}
}

// RequestAmendmentInput is a custodian's request for a changed answer.
type RequestAmendmentInput struct {
	QuestionID    string `json:"questionId"`
	QuestionSetID string `json:"questionSetId"`
	Reason        string `json:"reason"`
}

func (s *ApplicationService) RequestAmendment(app *models.Application, actor models.Actor, in RequestAmendmentInput) (*Outcome, error) {
	out, err := s.amendments.RequestAmendment(app, actor, in.QuestionID, in.QuestionSetID, in.Reason)
	if err != nil {
		return nil, err
	}
	return s.outcome(out), nil
}

func (s *ApplicationService) AnswerAmendment(app *models.Application, actor models.Actor, in amendments.AnswerInput) (*Outcome, error) {
	out, err := s.amendments.AnswerAmendment(app, actor, in)
	if err != nil {
		return nil, err
	}
	return s.outcome(out), nil
}

func (s *ApplicationService) RemoveAmendment(app *models.Application, actor models.Actor, questionID string) (*Outcome, error) {
	out, err := s.amendments.RemoveAmendment(app, actor, questionID)
	if err != nil {
		return nil, err
	}
	return s.outcome(out), nil
}

func (s *ApplicationService) RevertAnswer(app *models.Application, actor models.Actor, questionID string) (*Outcome, error) {
	out, err := s.amendments.RevertAnswer(app, actor, questionID)
	if err != nil {
		return nil, err
	}
	return s.outcome(out), nil
}

// ReturnAmendments releases the pending requests to the applicant and authors.
func (s *ApplicationService) ReturnAmendments(app *models.Application, actor models.Actor) (*Outcome, error) {
	_, pending := amendments.CountUnsubmitted(app)
	out, err := s.amendments.RequestAmendments(app, actor)
	if err != nil {
		return nil, err
	}
	o := s.outcome(out)
	o.notify(models.CategoryAmendmentsReturned, out.ApplicantIDs(), out.ID,
		fmt.Sprintf("%s has requested updates to %d question(s) on your application", publisherName(out), pending))
	return o, nil
}

// Submit is the applicant's submission. It resubmits a released amendment
// iteration when one exists, otherwise performs the initial submission of an
// application in progress. Anything else is a no-op.
func (s *ApplicationService) Submit(app *models.Application, actor models.Actor) (*Outcome, error) {
	if !actor.Authorised || actor.UserType != models.UserTypeApplicant {
		return nil, errors.NewUnauthorizedError("only the applicant can submit")
	}

	if amendments.ReturnedIterationIndex(app) >= 0 {
		out, resubmitted, err := s.amendments.Resubmit(app, actor)
		if err != nil {
			return nil, err
		}
		if !resubmitted && out.Status != models.StatusInProgress {
			return s.outcome(out), nil
		}
		kind := models.RequestResubmission
		if out.Status == models.StatusInProgress {
			// amended version of an approved application starts a new process
			kind = models.RequestInitialSubmission
			s.markSubmitted(out)
		}
		o := s.outcome(out)
		o.notify(models.CategoryAmendmentsResubmitted, out.CustodianManagers, out.ID,
			fmt.Sprintf("The applicant has submitted updates to application %s", out.ID))
		o.WorkflowRequests = append(o.WorkflowRequests, s.workflowRequest(out, kind, actor, map[string]interface{}{
			"applicationType": string(out.ApplicationType),
			"majorVersion":    out.MajorVersion,
		}))
		return o, nil
	}

	if app.Status != models.StatusInProgress {
		return &Outcome{Application: app.Clone(), NoOp: true}, nil
	}

	out := app.Clone()
	s.markSubmitted(out)
	o := s.outcome(out)
	o.notify(models.CategoryApplicationSubmitted, out.CustodianManagers, out.ID,
		fmt.Sprintf("A new data access request %s has been submitted to %s", out.ID, publisherName(out)))
	o.WorkflowRequests = append(o.WorkflowRequests, s.workflowRequest(out, models.RequestInitialSubmission, actor, map[string]interface{}{
		"applicationType": string(out.ApplicationType),
	}))
	return o, nil
}

// StartApplicantAmendment reopens an approved application for changes.
func (s *ApplicationService) StartApplicantAmendment(app *models.Application, actor models.Actor) (*Outcome, error) {
	out, err := s.amendments.StartApplicantAmendment(app, actor)
	if err != nil {
		return nil, err
	}
	return s.outcome(out), nil
}

// Withdraw lets the applicant abandon an undecided application.
func (s *ApplicationService) Withdraw(app *models.Application, actor models.Actor) (*Outcome, error) {
	if !actor.Authorised || actor.UserType != models.UserTypeApplicant {
		return nil, errors.NewUnauthorizedError("only the applicant can withdraw")
	}
	switch app.Status {
	case models.StatusInProgress, models.StatusSubmitted, models.StatusInReview:
	default:
		return nil, errors.NewInvalidStateError(fmt.Sprintf("cannot withdraw an application that is %s", app.Status))
	}

	wasSubmitted := app.Status != models.StatusInProgress
	out := app.Clone()
	if idx := review.ActiveStepIndex(out); idx >= 0 {
		out.Workflow.Steps[idx].Active = false
	}
	out.Status = models.StatusWithdrawn
	o := s.outcome(out)
	if wasSubmitted {
		o.notify(models.CategoryApplicationWithdrawn, out.CustodianManagers, out.ID,
			fmt.Sprintf("Application %s has been withdrawn by the applicant", out.ID))
	}
	return o, nil
}

func (s *ApplicationService) markSubmitted(app *models.Application) {
	now := s.now()
	app.Status = models.StatusSubmitted
	app.DateSubmitted = &now
}

func (s *ApplicationService) outcome(app *models.Application) *Outcome {
	app.UpdatedAt = s.now()
	return &Outcome{Application: app}
}

func (s *ApplicationService) workflowRequest(app *models.Application, kind models.WorkflowRequestKind, actor models.Actor, extra map[string]interface{}) models.WorkflowEngineRequest {
	vars := map[string]interface{}{
		models.VarApplicationID:     app.ID,
		models.VarApplicationStatus: string(app.Status),
		models.VarPublisher:         app.Publisher,
		models.VarActioner:          actor.UserID,
	}
	if app.DateSubmitted != nil {
		vars[models.VarDateSubmitted] = app.DateSubmitted.Format(time.RFC3339)
	}
	for k, v := range extra {
		vars[k] = v
	}
	return models.WorkflowEngineRequest{BusinessKey: app.ID, Kind: kind, Variables: vars}
}

func publisherName(app *models.Application) string {
	if app.Publisher != "" {
		return app.Publisher
	}
	return "The data custodian"
}
