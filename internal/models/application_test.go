package models

import (
	"testing"
	"time"

	"dar-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationCloneIsDeep(t *testing.T) {
	updated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	app := &Application{
		ID:                "app-1",
		Authors:           []string{"author-1"},
		CustodianManagers: []string{"manager-1"},
		QuestionAnswers: map[string]interface{}{
			"datasets": []interface{}{"hes", "cprd"},
			"contact":  map[string]interface{}{"email": "a@example.org"},
		},
		AmendmentIterations: []AmendmentIteration{{
			QuestionAnswers: map[string]Amendment{
				"title": {QuestionSetID: "qs", Answer: []string{"x"}, DateUpdated: &updated},
			},
		}},
		Workflow: &Workflow{Steps: []WorkflowStep{{StepName: "one", Reviewers: []string{"r1"}}}},
	}

	clone := app.Clone()
	require.Equal(t, app, clone)

	clone.Authors[0] = "changed"
	clone.QuestionAnswers["datasets"].([]interface{})[0] = "changed"
	clone.QuestionAnswers["contact"].(map[string]interface{})["email"] = "changed"
	amendment := clone.AmendmentIterations[0].QuestionAnswers["title"]
	amendment.Answer.([]string)[0] = "changed"
	*amendment.DateUpdated = updated.Add(time.Hour)
	clone.Workflow.Steps[0].Reviewers[0] = "changed"

	assert.Equal(t, "author-1", app.Authors[0])
	assert.Equal(t, "hes", app.QuestionAnswers["datasets"].([]interface{})[0])
	assert.Equal(t, "a@example.org", app.QuestionAnswers["contact"].(map[string]interface{})["email"])
	assert.Equal(t, []string{"x"}, app.AmendmentIterations[0].QuestionAnswers["title"].Answer)
	assert.Equal(t, updated, *app.AmendmentIterations[0].QuestionAnswers["title"].DateUpdated)
	assert.Equal(t, "r1", app.Workflow.Steps[0].Reviewers[0])

	var missing *Application
	assert.Nil(t, missing.Clone())
}

func TestApplicationMembership(t *testing.T) {
	app := &Application{
		UserID:            "applicant-1",
		Authors:           []string{"author-1", "applicant-1"},
		CustodianManagers: []string{"manager-1"},
		CustodianMembers:  []string{"reviewer-1"},
	}
	assert.Equal(t, []string{"applicant-1", "author-1"}, app.ApplicantIDs())
	assert.True(t, app.IsApplicant("author-1"))
	assert.True(t, app.IsManager("manager-1"))
	assert.False(t, app.IsManager("reviewer-1"))
	assert.True(t, app.IsCustodianMember("reviewer-1"))
	assert.Equal(t, []string{"manager-1", "reviewer-1"}, MergeRecipients([]string{"manager-1", ""}, []string{"reviewer-1", "manager-1"}))
}

func TestAmendmentConstructors(t *testing.T) {
	at := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	by := Actor{UserID: "manager-1", Name: "Morgan"}

	req, err := NewRequestedAmendment("qs-1", "Clarify", by, at)
	require.NoError(t, err)
	assert.True(t, req.Requested)
	assert.Equal(t, "Morgan", req.RequestedBy)
	assert.NoError(t, req.Validate())

	_, err = NewRequestedAmendment("", "Clarify", by, at)
	assert.ErrorIs(t, err, errors.ErrValidation)

	ans, err := NewAnsweredAmendment("qs-1", "value", Actor{UserID: "applicant-1"}, at)
	require.NoError(t, err)
	assert.False(t, ans.Requested)
	assert.Equal(t, "applicant-1", ans.UpdatedBy)
	assert.Equal(t, at, *ans.DateUpdated)

	_, err = NewAnsweredAmendment("qs-1", nil, by, at)
	assert.ErrorIs(t, err, errors.ErrValidation)

	assert.ErrorIs(t, Amendment{QuestionSetID: "qs-1"}.Validate(), errors.ErrValidation)
	assert.True(t, ans.WithoutAnswer().IsEmpty())
	assert.False(t, req.WithAnswer("x", by, at).WithoutAnswer().IsEmpty())
}

func TestAnswersEqual(t *testing.T) {
	assert.True(t, AnswersEqual("a", "a"))
	assert.True(t, AnswersEqual([]string{"a", "b"}, []interface{}{"a", "b"}))
	assert.True(t, AnswersEqual(map[string]interface{}{"x": 1.0}, map[string]interface{}{"x": 1}))
	assert.False(t, AnswersEqual("a", "b"))
	assert.False(t, AnswersEqual("a", nil))
	assert.True(t, AnswersEqual(nil, nil))
}

func TestIterationState(t *testing.T) {
	now := time.Now()
	it := AmendmentIteration{}
	assert.True(t, it.IsOpen())
	assert.False(t, it.AwaitingApplicant())

	it.DateReturned = &now
	assert.True(t, it.AwaitingApplicant())

	it.DateSubmitted = &now
	assert.False(t, it.IsOpen())
	assert.False(t, it.AwaitingApplicant())
	assert.True(t, it.IsReturned())
}

func TestStatusIsTerminal(t *testing.T) {
	for _, s := range []ApplicationStatus{StatusApproved, StatusApprovedWithConditions, StatusRejected} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []ApplicationStatus{StatusInProgress, StatusSubmitted, StatusInReview, StatusWithdrawn} {
		assert.False(t, s.IsTerminal(), s)
	}
}
