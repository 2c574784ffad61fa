package service

import (
	"dar-workers/internal/common/errors"
	"dar-workers/internal/engine/amendments"
	"dar-workers/internal/engine/review"
	"dar-workers/internal/engine/versions"
	"dar-workers/internal/models"
)

// View is the read model of an application for one caller.
type View struct {
	ApplicationID   string                      `json:"applicationId"`
	Status          models.ApplicationStatus    `json:"applicationStatus"`
	Version         string                      `json:"version"`
	Versions        []versions.Version          `json:"versions"`
	QuestionAnswers map[string]interface{}      `json:"questionAnswers"`
	Iterations      []models.AmendmentIteration `json:"amendmentIterations"`
	AmendmentStatus amendments.Status           `json:"amendmentStatus"`
	ActiveParty     models.UserType             `json:"activeParty"`
	Answered        int                         `json:"answeredAmendments"`
	Unanswered      int                         `json:"unansweredAmendments"`
	ActiveStep      string                      `json:"activeStep,omitempty"`
	WorkflowDone    bool                        `json:"workflowCompleted"`
}

// View projects app for actor at version, or the latest visible version when
// version is empty.
func (s *ApplicationService) View(app *models.Application, actor models.Actor, version string) (*View, error) {
	if !actor.Authorised {
		return nil, errors.NewUnauthorizedError("not authorised to view this application")
	}
	idx, err := versions.Resolve(app, actor.UserType, version)
	if err != nil {
		return nil, err
	}

	list := versions.List(app, actor.UserType)
	label := list[len(list)-1].Version
	for _, v := range list {
		if v.IterationIndex == idx {
			label = v.Version
		}
	}

	answered, unanswered := amendments.CountUnsubmitted(app)
	v := &View{
		ApplicationID:   app.ID,
		Status:          app.Status,
		Version:         label,
		Versions:        list,
		QuestionAnswers: versions.Project(app, actor.UserType, idx),
		Iterations:      versions.VisibleIterations(app, actor.UserType),
		AmendmentStatus: amendments.CalculateAmendmentStatus(app, actor.UserType),
		ActiveParty:     amendments.ActiveParty(app),
		Answered:        answered,
		Unanswered:      unanswered,
		WorkflowDone:    review.IsWorkflowComplete(app),
	}
	if i := review.ActiveStepIndex(app); i >= 0 {
		v.ActiveStep = app.Workflow.Steps[i].StepName
	}
	return v, nil
}
