package review

import (
	"testing"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

func newEngine() *Engine {
	return NewWithClock(func() time.Time { return fixedNow })
}

func twoStepWorkflow() models.Workflow {
	return models.Workflow{
		WorkflowName: "Standard review",
		Steps: []models.WorkflowStep{
			{StepName: "Safe people", Sections: []string{"applicant"}, Reviewers: []string{"reviewer-a", "reviewer-b"}, DeadlineDays: 5, ReminderOffsetDays: 2},
			{StepName: "Safe data", Sections: []string{"data"}, Reviewers: []string{"reviewer-c"}, DeadlineDays: 3, ReminderOffsetDays: 1},
		},
	}
}

func submittedApp() *models.Application {
	return &models.Application{
		ID:                "app-1",
		Status:            models.StatusSubmitted,
		UserID:            "applicant-1",
		CustodianManagers: []string{"manager-1"},
		QuestionAnswers:   map[string]interface{}{},
	}
}

func inReviewApp(t *testing.T, e *Engine) *models.Application {
	t.Helper()
	app, err := e.StartReview(submittedApp(), twoStepWorkflow(), "manager-1")
	require.NoError(t, err)
	return app
}

func TestStartReview(t *testing.T) {
	e := newEngine()

	app := inReviewApp(t, e)
	assert.Equal(t, models.StatusInReview, app.Status)
	assert.Equal(t, fixedNow, *app.DateReviewStart)
	assert.Equal(t, 0, ActiveStepIndex(app))
	assert.Equal(t, fixedNow, *app.Workflow.Steps[0].StartDateTime)
	assert.False(t, app.Workflow.Steps[1].Active)
	assert.Nil(t, app.Workflow.Steps[1].StartDateTime)

	_, err := e.StartReview(app, twoStepWorkflow(), "manager-1")
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	_, err = e.StartReview(submittedApp(), twoStepWorkflow(), "reviewer-a")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = e.StartReview(submittedApp(), models.Workflow{}, "manager-1")
	assert.ErrorIs(t, err, errors.ErrValidation)

	noReviewers := twoStepWorkflow()
	noReviewers.Steps[1].Reviewers = nil
	_, err = e.StartReview(submittedApp(), noReviewers, "manager-1")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestStartReviewCollapsesRepeatedReviewers(t *testing.T) {
	e := newEngine()
	wf := models.Workflow{Steps: []models.WorkflowStep{
		{StepName: "Safe people", Reviewers: []string{"reviewer-a", "reviewer-a", ""}},
		{StepName: "Safe data", Reviewers: []string{"reviewer-c"}},
	}}

	app, err := e.StartReview(submittedApp(), wf, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"reviewer-a"}, app.Workflow.Steps[0].Reviewers)
	assert.Equal(t, []string{"reviewer-a", "reviewer-a", ""}, wf.Steps[0].Reviewers)

	vote, err := e.CastVote(app, VoteInput{ReviewerID: "reviewer-a", Approved: true})
	require.NoError(t, err)
	assert.True(t, vote.StepComplete)
	assert.True(t, vote.Advanced)
	assert.Equal(t, "Safe data", vote.NextStepName)

	blank := twoStepWorkflow()
	blank.Steps[0].Reviewers = []string{"", ""}
	_, err = e.StartReview(submittedApp(), blank, "manager-1")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCastVoteQuorum(t *testing.T) {
	e := newEngine()
	app := inReviewApp(t, e)

	first, err := e.CastVote(app, VoteInput{ReviewerID: "reviewer-a", Approved: true})
	require.NoError(t, err)
	assert.False(t, first.StepComplete)
	assert.False(t, first.Advanced)
	assert.Len(t, first.Application.Workflow.Steps[0].Recommendations, 1)
	assert.Empty(t, app.Workflow.Steps[0].Recommendations, "input must not be mutated")

	second, err := e.CastVote(first.Application, VoteInput{ReviewerID: "reviewer-b", Approved: false, Comments: "Needs DPIA"})
	require.NoError(t, err)
	assert.True(t, second.StepComplete)
	assert.True(t, second.Advanced)
	assert.False(t, second.FinalStep)
	assert.Equal(t, "Safe data", second.NextStepName)

	steps := second.Application.Workflow.Steps
	assert.True(t, steps[0].Completed)
	assert.False(t, steps[0].Active)
	assert.Equal(t, fixedNow, *steps[0].EndDateTime)
	assert.True(t, steps[1].Active)
	assert.WithinDuration(t, fixedNow, *steps[1].StartDateTime, time.Second)

	final, err := e.CastVote(second.Application, VoteInput{ReviewerID: "reviewer-c", Approved: true})
	require.NoError(t, err)
	assert.True(t, final.StepComplete)
	assert.True(t, final.FinalStep)
	assert.False(t, final.Advanced)
	assert.True(t, IsWorkflowComplete(final.Application))
	assert.Equal(t, -1, ActiveStepIndex(final.Application))
}

func TestCastVoteDuplicate(t *testing.T) {
	e := newEngine()
	app := inReviewApp(t, e)

	first, err := e.CastVote(app, VoteInput{ReviewerID: "reviewer-a", Approved: true})
	require.NoError(t, err)

	_, err = e.CastVote(first.Application, VoteInput{ReviewerID: "reviewer-a", Approved: false})
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.False(t, errors.IsVersionConflict(err))
	assert.Len(t, first.Application.Workflow.Steps[0].Recommendations, 1)
}

func TestCastVoteRejections(t *testing.T) {
	e := newEngine()
	app := inReviewApp(t, e)

	_, err := e.CastVote(app, VoteInput{})
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = e.CastVote(app, VoteInput{ReviewerID: "reviewer-c", Approved: true})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = e.CastVote(app, VoteInput{ReviewerID: "reviewer-a", StepName: "Safe data"})
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	_, err = e.CastVote(submittedApp(), VoteInput{ReviewerID: "reviewer-a"})
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestCastVoteOnCompletedStepIsNoOp(t *testing.T) {
	e := newEngine()
	app := inReviewApp(t, e)
	over, err := e.OverrideStep(app, "manager-1")
	require.NoError(t, err)

	late, err := e.CastVote(over.Application, VoteInput{ReviewerID: "reviewer-a", StepName: "Safe people", Approved: true})
	require.NoError(t, err)
	assert.True(t, late.NoOp)
	assert.Empty(t, late.Application.Workflow.Steps[0].Recommendations)
	assert.Equal(t, over.Application.Workflow, late.Application.Workflow)
}

func TestOverrideStep(t *testing.T) {
	e := newEngine()
	app := inReviewApp(t, e)

	_, err := e.OverrideStep(app, "reviewer-a")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	first, err := e.OverrideStep(app, "manager-1")
	require.NoError(t, err)
	assert.True(t, first.StepComplete)
	assert.True(t, first.Advanced)
	assert.Equal(t, "Safe people", first.StepName)
	assert.Equal(t, 1, ActiveStepIndex(first.Application))

	last, err := e.OverrideStep(first.Application, "manager-1")
	require.NoError(t, err)
	assert.True(t, last.FinalStep)

	_, err = e.OverrideStep(last.Application, "manager-1")
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestRecordDecision(t *testing.T) {
	e := newEngine()
	app := inReviewApp(t, e)

	_, err := e.RecordDecision(app, "manager-1", models.StatusInReview, "")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = e.RecordDecision(app, "reviewer-a", models.StatusApproved, "")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	out, err := e.RecordDecision(app, "manager-1", models.StatusApprovedWithConditions, "Annual audit")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApprovedWithConditions, out.Status)
	assert.Equal(t, "manager-1", out.DecisionBy)
	assert.Equal(t, "Annual audit", out.DecisionComments)
	assert.Equal(t, fixedNow, *out.DateFinalStatus)
	assert.Equal(t, -1, ActiveStepIndex(out))
	assert.True(t, out.Workflow.Steps[0].Completed)

	_, err = e.RecordDecision(out, "manager-1", models.StatusRejected, "")
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	direct, err := e.RecordDecision(submittedApp(), "manager-1", models.StatusRejected, "Out of scope")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, direct.Status)
}

func TestOutstandingReviewers(t *testing.T) {
	step := models.WorkflowStep{
		Reviewers:       []string{"reviewer-a", "reviewer-b", "reviewer-c"},
		Recommendations: []models.Recommendation{{ReviewerID: "reviewer-b"}},
	}
	assert.Equal(t, []string{"reviewer-a", "reviewer-c"}, OutstandingReviewers(step))
}
