// internal/models/amendment.go
package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"

	"dar-workers/internal/common/errors"
)

// AmendmentIteration is one round trip of changes between custodian and applicant.
type AmendmentIteration struct {
	DateCreated     time.Time            `json:"dateCreated"`
	CreatedBy       string               `json:"createdBy"`
	DateReturned    *time.Time           `json:"dateReturned,omitempty"`
	ReturnedBy      string               `json:"returnedBy,omitempty"`
	DateSubmitted   *time.Time           `json:"dateSubmitted,omitempty"`
	SubmittedBy     string               `json:"submittedBy,omitempty"`
	QuestionAnswers map[string]Amendment `json:"questionAnswers"`
}

// IsOpen reports whether the applicant has not yet handed the iteration back.
func (it *AmendmentIteration) IsOpen() bool {
	return it.DateSubmitted == nil
}

// IsReturned reports whether the custodian released the iteration to the applicant.
func (it *AmendmentIteration) IsReturned() bool {
	return it.DateReturned != nil
}

// AwaitingApplicant reports whether the iteration is with the applicant.
func (it *AmendmentIteration) AwaitingApplicant() bool {
	return it.DateSubmitted == nil && it.DateReturned != nil
}

func (it AmendmentIteration) Clone() AmendmentIteration {
	out := it
	out.DateReturned = cloneTime(it.DateReturned)
	out.DateSubmitted = cloneTime(it.DateSubmitted)
	if it.QuestionAnswers != nil {
		out.QuestionAnswers = make(map[string]Amendment, len(it.QuestionAnswers))
		for k, v := range it.QuestionAnswers {
			out.QuestionAnswers[k] = v.Clone()
		}
	}
	return out
}

// Amendment is a question-level correction: a custodian request, an applicant
// answer, or both. An amendment that is neither requested nor answered is invalid.
type Amendment struct {
	QuestionSetID   string      `json:"questionSetId"`
	Requested       bool        `json:"requested"`
	Reason          string      `json:"reason,omitempty"`
	RequestedBy     string      `json:"requestedBy,omitempty"`
	RequestedByUser string      `json:"requestedByUser,omitempty"`
	DateRequested   *time.Time  `json:"dateRequested,omitempty"`
	Answer          interface{} `json:"answer,omitempty"`
	UpdatedBy       string      `json:"updatedBy,omitempty"`
	UpdatedByUser   string      `json:"updatedByUser,omitempty"`
	DateUpdated     *time.Time  `json:"dateUpdated,omitempty"`
}

// NewRequestedAmendment builds a custodian request with no answer.
func NewRequestedAmendment(questionSetID, reason string, by Actor, at time.Time) (Amendment, error) {
	if questionSetID == "" {
		return Amendment{}, errors.NewValidationError("questionSetId is required")
	}
	ts := at
	return Amendment{
		QuestionSetID:   questionSetID,
		Requested:       true,
		Reason:          reason,
		RequestedBy:     by.displayName(),
		RequestedByUser: by.UserID,
		DateRequested:   &ts,
	}, nil
}

// NewAnsweredAmendment builds an applicant-initiated amendment carrying an answer.
func NewAnsweredAmendment(questionSetID string, answer interface{}, by Actor, at time.Time) (Amendment, error) {
	if questionSetID == "" {
		return Amendment{}, errors.NewValidationError("questionSetId is required")
	}
	if answer == nil {
		return Amendment{}, errors.NewValidationError("answer is required for an unrequested amendment")
	}
	return Amendment{QuestionSetID: questionSetID}.WithAnswer(answer, by, at), nil
}

// HasAnswer reports whether an answer is recorded.
func (a Amendment) HasAnswer() bool {
	return a.Answer != nil
}

// IsEmpty reports whether the amendment carries no information.
func (a Amendment) IsEmpty() bool {
	return !a.Requested && a.Answer == nil
}

// Validate enforces the amendment invariant.
func (a Amendment) Validate() error {
	if a.QuestionSetID == "" {
		return errors.NewValidationError("questionSetId is required")
	}
	if a.IsEmpty() {
		return errors.NewValidationError("amendment must be requested or answered")
	}
	return nil
}

// WithAnswer returns a copy carrying answer and the update audit fields.
func (a Amendment) WithAnswer(answer interface{}, by Actor, at time.Time) Amendment {
	ts := at
	a.Answer = cloneValue(answer)
	a.UpdatedBy = by.displayName()
	a.UpdatedByUser = by.UserID
	a.DateUpdated = &ts
	return a
}

// WithoutAnswer returns a copy with the answer and update audit fields cleared.
func (a Amendment) WithoutAnswer() Amendment {
	a.Answer = nil
	a.UpdatedBy = ""
	a.UpdatedByUser = ""
	a.DateUpdated = nil
	return a
}

func (a Amendment) Clone() Amendment {
	out := a
	out.DateRequested = cloneTime(a.DateRequested)
	out.DateUpdated = cloneTime(a.DateUpdated)
	out.Answer = cloneValue(a.Answer)
	return out
}

func (a Actor) displayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.UserID
}

// AnswersEqual compares two answer values structurally. Values are compared by
// their canonical JSON encoding so that []string and []interface{} holding the
// same items are equal.
func AnswersEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
