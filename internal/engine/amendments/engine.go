// Package amendments implements the turn-based amendment cycle between the
// custodian and the applicant. Every operation takes an application value and
// returns a modified copy; the input is never mutated.
package amendments

import (
	"fmt"
	"sort"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/engine/versions"
	"dar-workers/internal/models"
)

// Status is the amendment summary shown on dashboards.
type Status string

const (
	StatusNone             Status = ""
	StatusUpdatesSubmitted Status = "UpdatesSubmitted"
	StatusUpdatesRequested Status = "UpdatesRequested"
	StatusUpdatesReceived  Status = "UpdatesReceived"
	StatusAwaitingUpdates  Status = "AwaitingUpdates"
)

type Engine struct {
	now func() time.Time
}

func New() *Engine {
	return NewWithClock(func() time.Time { return time.Now().UTC() })
}

// NewWithClock is used by tests to pin timestamps.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// AnswerInput carries an applicant's answer. QuestionSetID is only needed
// when the answer creates a new amendment.
type AnswerInput struct {
	QuestionID    string      `json:"questionId"`
	QuestionSetID string      `json:"questionSetId"`
	Answer        interface{} `json:"answer"`
}

// ActiveParty returns the applicant while an iteration is released to them and
// not yet handed back, and the custodian otherwise.
func ActiveParty(app *models.Application) models.UserType {
	if ReturnedIterationIndex(app) >= 0 {
		return models.UserTypeApplicant
	}
	return models.UserTypeCustodian
}

// LatestOpenIterationIndex returns the last open iteration in insertion
// order, or -1.
func LatestOpenIterationIndex(app *models.Application) int {
	for i := len(app.AmendmentIterations) - 1; i >= 0; i-- {
		if app.AmendmentIterations[i].IsOpen() {
			return i
		}
	}
	return -1
}

// ReturnedIterationIndex returns the iteration awaiting the applicant, or -1.
func ReturnedIterationIndex(app *models.Application) int {
	for i := len(app.AmendmentIterations) - 1; i >= 0; i-- {
		if app.AmendmentIterations[i].AwaitingApplicant() {
			return i
		}
	}
	return -1
}

// RequestAmendment asks the applicant to change the answer to questionID.
func (e *Engine) RequestAmendment(app *models.Application, actor models.Actor, questionID, questionSetID, reason string) (*models.Application, error) {
	if err := requireParty(app, actor, models.UserTypeCustodian); err != nil {
		return nil, err
	}
	if questionID == "" {
		return nil, errors.NewValidationError("questionId is required")
	}
	if app.Status != models.StatusSubmitted && app.Status != models.StatusInReview {
		return nil, errors.NewInvalidStateError(fmt.Sprintf("cannot request amendments while application is %s", app.Status))
	}

	now := e.now()
	amendment, err := models.NewRequestedAmendment(questionSetID, reason, actor, now)
	if err != nil {
		return nil, err
	}

	out := app.Clone()
	idx := LatestOpenIterationIndex(out)
	if idx < 0 {
		out.AmendmentIterations = append(out.AmendmentIterations, models.AmendmentIteration{
			DateCreated:     now,
			CreatedBy:       actor.UserID,
			QuestionAnswers: map[string]models.Amendment{},
		})
		idx = len(out.AmendmentIterations) - 1
	}
	it := &out.AmendmentIterations[idx]
	if it.QuestionAnswers == nil {
		it.QuestionAnswers = map[string]models.Amendment{}
	}
	it.QuestionAnswers[questionID] = amendment
	return out, nil
}

// AnswerAmendment records the applicant's answer. An answer equal to the
// committed history collapses: a requested amendment loses its answer, an
// unrequested one is dropped.
func (e *Engine) AnswerAmendment(app *models.Application, actor models.Actor, in AnswerInput) (*models.Application, error) {
	if err := requireParty(app, actor, models.UserTypeApplicant); err != nil {
		return nil, err
	}
	if in.QuestionID == "" {
		return nil, errors.NewValidationError("questionId is required")
	}
	if in.Answer == nil {
		return nil, errors.NewValidationError("answer is required")
	}

	out := app.Clone()
	idx := LatestOpenIterationIndex(out)
	if idx < 0 {
		return nil, errors.NewInvalidStateError("no open amendment iteration")
	}
	it := &out.AmendmentIterations[idx]
	if it.QuestionAnswers == nil {
		it.QuestionAnswers = map[string]models.Amendment{}
	}

	historical := versions.HistoricalAnswer(out, in.QuestionID, idx)
	unchanged := models.AnswersEqual(in.Answer, historical)
	existing, exists := it.QuestionAnswers[in.QuestionID]

	switch {
	case exists && unchanged && existing.Requested:
		it.QuestionAnswers[in.QuestionID] = existing.WithoutAnswer()
	case exists && unchanged:
		delete(it.QuestionAnswers, in.QuestionID)
	case exists:
		it.QuestionAnswers[in.QuestionID] = existing.WithAnswer(in.Answer, actor, e.now())
	case unchanged:
		// nothing new to record
	default:
		amendment, err := models.NewAnsweredAmendment(in.QuestionSetID, in.Answer, actor, e.now())
		if err != nil {
			return nil, err
		}
		it.QuestionAnswers[in.QuestionID] = amendment
	}
	return out, nil
}

// RemoveAmendment withdraws a custodian request from the open iteration. A
// missing question or iteration is a no-op. An iteration left empty is removed.
func (e *Engine) RemoveAmendment(app *models.Application, actor models.Actor, questionID string) (*models.Application, error) {
	if err := requireParty(app, actor, models.UserTypeCustodian); err != nil {
		return nil, err
	}

	out := app.Clone()
	idx := LatestOpenIterationIndex(out)
	if idx < 0 {
		return out, nil
	}
	it := &out.AmendmentIterations[idx]
	if _, ok := it.QuestionAnswers[questionID]; !ok {
		return out, nil
	}
	delete(it.QuestionAnswers, questionID)
	if len(it.QuestionAnswers) == 0 {
		out.AmendmentIterations = append(out.AmendmentIterations[:idx], out.AmendmentIterations[idx+1:]...)
	}
	return out, nil
}

// RevertAnswer drops the applicant's answer and keeps the custodian's request.
// An unrequested amendment without an answer carries nothing and is deleted.
func (e *Engine) RevertAnswer(app *models.Application, actor models.Actor, questionID string) (*models.Application, error) {
	if err := requireParty(app, actor, models.UserTypeApplicant); err != nil {
		return nil, err
	}

	out := app.Clone()
	idx := LatestOpenIterationIndex(out)
	if idx < 0 {
		return out, nil
	}
	it := &out.AmendmentIterations[idx]
	existing, ok := it.QuestionAnswers[questionID]
	if !ok || !existing.HasAnswer() {
		return out, nil
	}
	reverted := existing.WithoutAnswer()
	if reverted.IsEmpty() {
		delete(it.QuestionAnswers, questionID)
		return out, nil
	}
	it.QuestionAnswers[questionID] = reverted
	return out, nil
}

// RequestAmendments releases the open iteration to the applicant.
func (e *Engine) RequestAmendments(app *models.Application, actor models.Actor) (*models.Application, error) {
	if err := requireParty(app, actor, models.UserTypeCustodian); err != nil {
		return nil, err
	}
	if _, unanswered := CountUnsubmitted(app); unanswered == 0 {
		return nil, errors.NewNoAmendmentsPendingError(app.ID)
	}

	out := app.Clone()
	now := e.now()
	it := &out.AmendmentIterations[LatestOpenIterationIndex(out)]
	it.DateReturned = &now
	it.ReturnedBy = actor.UserID
	return out, nil
}

// Resubmit hands the released iteration back to the custodian. The boolean is
// false when there was nothing to resubmit; an empty released iteration is
// dropped rather than stamped.
func (e *Engine) Resubmit(app *models.Application, actor models.Actor) (*models.Application, bool, error) {
	if !actor.Authorised || actor.UserType != models.UserTypeApplicant {
		return nil, false, errors.NewUnauthorizedError("only the applicant can resubmit amendments")
	}

	out := app.Clone()
	idx := ReturnedIterationIndex(out)
	if idx < 0 {
		return out, false, nil
	}
	if len(out.AmendmentIterations[idx].QuestionAnswers) == 0 {
		out.AmendmentIterations = append(out.AmendmentIterations[:idx], out.AmendmentIterations[idx+1:]...)
		return out, false, nil
	}
	now := e.now()
	it := &out.AmendmentIterations[idx]
	it.DateSubmitted = &now
	it.SubmittedBy = actor.UserID
	return out, true, nil
}

// StartApplicantAmendment opens a self-released iteration on an approved
// application so the applicant can amend it. The application becomes an
// amended version in progress.
func (e *Engine) StartApplicantAmendment(app *models.Application, actor models.Actor) (*models.Application, error) {
	if !actor.Authorised || actor.UserType != models.UserTypeApplicant {
		return nil, errors.NewUnauthorizedError("only the applicant can amend an approved application")
	}
	if app.Status != models.StatusApproved && app.Status != models.StatusApprovedWithConditions {
		return nil, errors.NewInvalidStateError(fmt.Sprintf("cannot amend an application that is %s", app.Status))
	}
	if LatestOpenIterationIndex(app) >= 0 {
		return nil, errors.NewInvalidStateError("an amendment iteration is already open")
	}

	out := app.Clone()
	now := e.now()
	released := now
	out.AmendmentIterations = append(out.AmendmentIterations, models.AmendmentIteration{
		DateCreated:     now,
		CreatedBy:       actor.UserID,
		DateReturned:    &released,
		ReturnedBy:      actor.UserID,
		QuestionAnswers: map[string]models.Amendment{},
	})
	out.ApplicationType = models.ApplicationTypeAmended
	out.MajorVersion++
	out.Status = models.StatusInProgress
	out.DateFinalStatus = nil
	out.DecisionBy = ""
	out.DecisionComments = ""
	return out, nil
}

// CountUnsubmitted counts amendments in the open iteration by answer presence.
func CountUnsubmitted(app *models.Application) (answered, unanswered int) {
	idx := LatestOpenIterationIndex(app)
	if idx < 0 {
		return 0, 0
	}
	for _, a := range app.AmendmentIterations[idx].QuestionAnswers {
		if a.HasAnswer() {
			answered++
		} else {
			unanswered++
		}
	}
	return answered, unanswered
}

// UnansweredQuestions lists the open iteration's outstanding question ids.
func UnansweredQuestions(app *models.Application) []string {
	idx := LatestOpenIterationIndex(app)
	if idx < 0 {
		return nil
	}
	var ids []string
	for id, a := range app.AmendmentIterations[idx].QuestionAnswers {
		if !a.HasAnswer() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CalculateAmendmentStatus summarises the last iteration for userType.
func CalculateAmendmentStatus(app *models.Application, userType models.UserType) Status {
	if len(app.AmendmentIterations) == 0 || app.Status.IsTerminal() {
		return StatusNone
	}
	last := app.AmendmentIterations[len(app.AmendmentIterations)-1]
	applicant := userType == models.UserTypeApplicant
	switch {
	case last.DateSubmitted != nil && applicant:
		return StatusUpdatesSubmitted
	case last.DateSubmitted != nil:
		return StatusUpdatesReceived
	case last.DateReturned != nil && applicant:
		return StatusUpdatesRequested
	case last.DateReturned != nil:
		return StatusAwaitingUpdates
	default:
		return StatusNone
	}
}

func requireParty(app *models.Application, actor models.Actor, party models.UserType) error {
	if !actor.Authorised {
		return errors.NewUnauthorizedError(fmt.Sprintf("user %s is not authorised for application %s", actor.UserID, app.ID))
	}
	if actor.UserType != party {
		return errors.NewUnauthorizedError(fmt.Sprintf("operation requires the %s", party))
	}
	if active := ActiveParty(app); active != party {
		return errors.NewUnauthorizedError(fmt.Sprintf("waiting on the %s", active))
	}
	return nil
}
