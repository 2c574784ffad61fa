package service

import (
	"fmt"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/engine/review"
	"dar-workers/internal/models"
)

// StartReview assigns a workflow to a submitted application.
func (s *ApplicationService) StartReview(app *models.Application, actor models.Actor, workflow models.Workflow) (*Outcome, error) {
	if err := requireCustodian(actor); err != nil {
		return nil, err
	}
	out, err := s.review.StartReview(app, workflow, actor.UserID)
	if err != nil {
		return nil, err
	}
	o := s.outcome(out)
	first := out.Workflow.Steps[0]
	o.notify(models.CategoryReviewStarted, first.Reviewers, out.ID,
		fmt.Sprintf("You have been assigned to review phase %s of application %s", first.StepName, out.ID))
	return o, nil
}

// CastVote records the acting reviewer's recommendation on the active step.
func (s *ApplicationService) CastVote(app *models.Application, actor models.Actor, in review.VoteInput) (*Outcome, error) {
	if !actor.Authorised {
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("user %s is not authorised for application %s", actor.UserID, app.ID))
	}
	in.ReviewerID = actor.UserID
	t, err := s.review.CastVote(app, in)
	if err != nil {
		return nil, err
	}
	if t.NoOp {
		return &Outcome{Application: t.Application, NoOp: true}, nil
	}
	o := s.outcome(t.Application)
	if t.StepComplete {
		s.stepCompleted(o, actor, t, false)
	}
	return o, nil
}

// OverrideStep completes the active step on a manager's authority.
func (s *ApplicationService) OverrideStep(app *models.Application, actor models.Actor) (*Outcome, error) {
	if err := requireCustodian(actor); err != nil {
		return nil, err
	}
	idx := review.ActiveStepIndex(app)
	t, err := s.review.OverrideStep(app, actor.UserID)
	if err != nil {
		return nil, err
	}
	o := s.outcome(t.Application)
	overridden := t.Application.Workflow.Steps[idx]
	o.notify(models.CategoryStepOverride,
		models.MergeRecipients(t.Application.CustodianManagers, overridden.Reviewers), t.Application.ID,
		fmt.Sprintf("Review phase %s of application %s was completed by a manager override", t.StepName, t.Application.ID))
	s.stepCompleted(o, actor, t, true)
	return o, nil
}

// stepCompleted emits the process request and the follow-up notice for a
// completed step.
func (s *ApplicationService) stepCompleted(o *Outcome, actor models.Actor, t *review.Transition, override bool) {
	app := t.Application
	o.WorkflowRequests = append(o.WorkflowRequests, s.workflowRequest(app, models.RequestStepCompletion, actor, map[string]interface{}{
		models.VarStepName:         t.StepName,
		models.VarOverride:         override,
		models.VarWorkflowComplete: t.FinalStep,
	}))

	switch {
	case t.Advanced:
		next := app.Workflow.Steps[review.ActiveStepIndex(app)]
		o.notify(models.CategoryStepAdvanced, next.Reviewers, app.ID,
			fmt.Sprintf("Review phase %s of application %s is now open for your recommendation", next.StepName, app.ID))
	case t.FinalStep:
		o.notify(models.CategoryFinalDecisionRequired, app.CustodianManagers, app.ID,
			fmt.Sprintf("All review phases of application %s are complete and a final decision is required", app.ID))
	}
}

// DecisionInput is a manager's final decision.
type DecisionInput struct {
	Status   models.ApplicationStatus `json:"applicationStatus"`
	Comments string                   `json:"comments,omitempty"`
}

// RecordDecision stores the decision and informs the applicant team.
func (s *ApplicationService) RecordDecision(app *models.Application, actor models.Actor, in DecisionInput) (*Outcome, error) {
	if err := requireCustodian(actor); err != nil {
		return nil, err
	}
	out, err := s.review.RecordDecision(app, actor.UserID, in.Status, in.Comments)
	if err != nil {
		return nil, err
	}
	o := s.outcome(out)
	o.notify(models.CategoryDecisionRecorded, out.ApplicantIDs(), out.ID,
		fmt.Sprintf("Your application %s has been %s by %s", out.ID, out.Status, publisherName(out)))
	o.WorkflowRequests = append(o.WorkflowRequests, s.workflowRequest(out, models.RequestManagerApproval, actor, map[string]interface{}{
		models.VarManagerApproved: in.Status != models.StatusRejected,
	}))
	return o, nil
}

// DeadlineCheck reports the active step's deadline state.
type DeadlineCheck struct {
	Outcome  *Outcome
	StepName string
	Status   review.DeadlineStatus
	Deadline review.Deadline
}

// CheckDeadlines emits reminders for the active step at now. The application
// is not modified.
func (s *ApplicationService) CheckDeadlines(app *models.Application, now time.Time) *DeadlineCheck {
	o := &Outcome{Application: app.Clone()}
	check := &DeadlineCheck{Outcome: o}
	if app.Status != models.StatusInReview {
		return check
	}
	step, deadline, status, ok := review.ActiveDeadline(app, now)
	if !ok {
		return check
	}
	check.StepName = step.StepName
	check.Status = status
	check.Deadline = deadline

	switch status {
	case review.DeadlineApproaching:
		o.notify(models.CategoryDeadlineApproaching, review.OutstandingReviewers(step), app.ID,
			fmt.Sprintf("Your recommendation for phase %s of application %s is due by %s",
				step.StepName, app.ID, deadline.Expiry.Format(time.RFC1123)))
	case review.DeadlinePassed:
		o.notify(models.CategoryDeadlinePassed, app.CustodianManagers, app.ID,
			fmt.Sprintf("The deadline for phase %s of application %s passed on %s",
				step.StepName, app.ID, deadline.Expiry.Format(time.RFC1123)))
	}
	return check
}

func requireCustodian(actor models.Actor) error {
	if !actor.Authorised || actor.UserType != models.UserTypeCustodian {
		return errors.NewUnauthorizedError("operation requires a custodian manager")
	}
	return nil
}
