// Package review drives the reviewer workflow: one active step at a time,
// votes, manager overrides, and step deadlines.
package review

import (
	"fmt"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/models"
)

type Engine struct {
	now func() time.Time
}

func New() *Engine {
	return NewWithClock(func() time.Time { return time.Now().UTC() })
}

func NewWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// VoteInput is a reviewer's recommendation. StepName is optional; when set
// and that step has already completed, the vote is a no-op.
type VoteInput struct {
	ReviewerID string `json:"reviewerId"`
	StepName   string `json:"stepName,omitempty"`
	Approved   bool   `json:"approved"`
	Comments   string `json:"comments,omitempty"`
}

// Transition describes what a vote or override did to the workflow.
type Transition struct {
	Application  *models.Application
	StepName     string
	StepComplete bool
	Advanced     bool
	FinalStep    bool
	NextStepName string
	NoOp         bool
}

// CastVote appends a recommendation to the active step and advances the
// workflow once every reviewer has voted.
func (e *Engine) CastVote(app *models.Application, in VoteInput) (*Transition, error) {
	if in.ReviewerID == "" {
		return nil, errors.NewValidationError("reviewerId is required")
	}
	if in.StepName != "" {
		if step := findStep(app, in.StepName); step != nil && step.Completed {
			return &Transition{Application: app.Clone(), StepName: in.StepName, StepComplete: true, NoOp: true}, nil
		}
	}

	idx, err := activeStepForUpdate(app)
	if err != nil {
		return nil, err
	}
	step := &app.Workflow.Steps[idx]
	if in.StepName != "" && in.StepName != step.StepName {
		return nil, errors.NewInvalidStateError(fmt.Sprintf("step %s is not active", in.StepName))
	}
	if !step.HasReviewer(in.ReviewerID) {
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("user %s is not a reviewer for step %s", in.ReviewerID, step.StepName))
	}
	if _, voted := step.RecommendationBy(in.ReviewerID); voted {
		return nil, errors.NewDuplicateVoteError(in.ReviewerID, step.StepName)
	}

	out := app.Clone()
	now := e.now()
	active := &out.Workflow.Steps[idx]
	active.Recommendations = append(active.Recommendations, models.Recommendation{
		ReviewerID: in.ReviewerID,
		Approved:   in.Approved,
		Comments:   in.Comments,
		CreatedAt:  now,
	})

	t := &Transition{Application: out, StepName: active.StepName}
	if len(active.Recommendations) == len(active.Reviewers) {
		t.StepComplete = true
		e.advance(out, idx, t)
	}
	return t, nil
}

// OverrideStep lets a custodian manager complete the active step without the
// outstanding votes.
func (e *Engine) OverrideStep(app *models.Application, managerID string) (*Transition, error) {
	if !app.IsManager(managerID) {
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("user %s is not a custodian manager", managerID))
	}
	idx, err := activeStepForUpdate(app)
	if err != nil {
		return nil, err
	}

	out := app.Clone()
	t := &Transition{Application: out, StepName: out.Workflow.Steps[idx].StepName, StepComplete: true}
	e.advance(out, idx, t)
	return t, nil
}

// StartReview attaches workflow and activates its first step.
func (e *Engine) StartReview(app *models.Application, workflow models.Workflow, managerID string) (*models.Application, error) {
	if !app.IsManager(managerID) {
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("user %s is not a custodian manager", managerID))
	}
	if app.Status != models.StatusSubmitted {
		return nil, errors.NewInvalidStateError(fmt.Sprintf("cannot start review while application is %s", app.Status))
	}
	if len(workflow.Steps) == 0 {
		return nil, errors.NewValidationError("workflow must have at least one step")
	}
	for i, s := range workflow.Steps {
		if s.StepName == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("step %d has no name", i))
		}
		if len(models.MergeRecipients(s.Reviewers)) == 0 {
			return nil, errors.NewValidationError(fmt.Sprintf("step %s has no reviewers", s.StepName))
		}
	}

	out := app.Clone()
	now := e.now()
	wf := workflow.Clone()
	for i := range wf.Steps {
		wf.Steps[i].Reviewers = models.MergeRecipients(wf.Steps[i].Reviewers)
		wf.Steps[i].Active = false
		wf.Steps[i].Completed = false
		wf.Steps[i].Recommendations = nil
		wf.Steps[i].StartDateTime = nil
		wf.Steps[i].EndDateTime = nil
	}
	started := now
	wf.Steps[0].Active = true
	wf.Steps[0].StartDateTime = &started

	out.Workflow = &wf
	out.Status = models.StatusInReview
	out.DateReviewStart = &now
	return out, nil
}

// RecordDecision stores a manager's final decision and closes any active step.
func (e *Engine) RecordDecision(app *models.Application, managerID string, decision models.ApplicationStatus, comments string) (*models.Application, error) {
	if !app.IsManager(managerID) {
		return nil, errors.NewUnauthorizedError(fmt.Sprintf("user %s is not a custodian manager", managerID))
	}
	if !decision.IsTerminal() {
		return nil, errors.NewValidationError(fmt.Sprintf("%q is not a decision", decision))
	}
	if app.Status != models.StatusSubmitted && app.Status != models.StatusInReview {
		return nil, errors.NewInvalidStateError(fmt.Sprintf("cannot decide an application that is %s", app.Status))
	}

	out := app.Clone()
	now := e.now()
	if idx := ActiveStepIndex(out); idx >= 0 {
		step := &out.Workflow.Steps[idx]
		ended := now
		step.Active = false
		step.Completed = true
		step.EndDateTime = &ended
	}
	out.Status = decision
	out.DateFinalStatus = &now
	out.DecisionBy = managerID
	out.DecisionComments = comments
	return out, nil
}

// advance completes step idx and activates the following one if it exists.
func (e *Engine) advance(app *models.Application, idx int, t *Transition) {
	now := e.now()
	ended := now
	current := &app.Workflow.Steps[idx]
	current.Active = false
	current.Completed = true
	current.EndDateTime = &ended

	if idx+1 >= len(app.Workflow.Steps) {
		t.FinalStep = true
		return
	}
	started := now
	next := &app.Workflow.Steps[idx+1]
	next.Active = true
	next.StartDateTime = &started
	t.Advanced = true
	t.NextStepName = next.StepName
}

// ActiveStepIndex returns the active step, or -1.
func ActiveStepIndex(app *models.Application) int {
	if app.Workflow == nil {
		return -1
	}
	for i := range app.Workflow.Steps {
		if app.Workflow.Steps[i].Active {
			return i
		}
	}
	return -1
}

// IsWorkflowComplete is true when a workflow is attached and every step completed.
func IsWorkflowComplete(app *models.Application) bool {
	if app.Workflow == nil || len(app.Workflow.Steps) == 0 {
		return false
	}
	for _, s := range app.Workflow.Steps {
		if !s.Completed {
			return false
		}
	}
	return true
}

// OutstandingReviewers lists reviewers of step who have not voted.
func OutstandingReviewers(step models.WorkflowStep) []string {
	var out []string
	for _, r := range step.Reviewers {
		if _, voted := step.RecommendationBy(r); !voted {
			out = append(out, r)
		}
	}
	return out
}

func activeStepForUpdate(app *models.Application) (int, error) {
	if app.Status != models.StatusInReview {
		return -1, errors.NewInvalidStateError(fmt.Sprintf("application is %s, not in review", app.Status))
	}
	idx := ActiveStepIndex(app)
	if idx < 0 {
		return -1, errors.NewInvalidStateError("no active workflow step")
	}
	return idx, nil
}

func findStep(app *models.Application, name string) *models.WorkflowStep {
	if app.Workflow == nil {
		return nil
	}
	for i := range app.Workflow.Steps {
		if app.Workflow.Steps[i].StepName == name {
			return &app.Workflow.Steps[i]
		}
	}
	return nil
}
