// internal/models/application.go
package models

import "time"

// ApplicationStatus is the lifecycle state of a data access request.
type ApplicationStatus string

const (
	StatusInProgress             ApplicationStatus = "inProgress"
	StatusSubmitted              ApplicationStatus = "submitted"
	StatusInReview               ApplicationStatus = "inReview"
	StatusApproved               ApplicationStatus = "approved"
	StatusApprovedWithConditions ApplicationStatus = "approved with conditions"
	StatusRejected               ApplicationStatus = "rejected"
	StatusWithdrawn              ApplicationStatus = "withdrawn"
)

// IsTerminal reports whether a final decision has been recorded.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusApprovedWithConditions, StatusRejected:
		return true
	}
	return false
}

type ApplicationType string

const (
	ApplicationTypeInitial ApplicationType = "initial"
	ApplicationTypeAmended ApplicationType = "amended"
)

// UserType is the role a caller holds relative to one application.
type UserType string

const (
	UserTypeApplicant UserType = "applicant"
	UserTypeCustodian UserType = "custodian"
	UserTypeAdmin     UserType = "admin"
)

// Actor is the resolved caller of an operation.
type Actor struct {
	UserID     string   `json:"userId"`
	Name       string   `json:"name,omitempty"`
	UserType   UserType `json:"userType"`
	Authorised bool     `json:"authorised"`
}

// Application is the aggregate root of a data access request.
type Application struct {
	ID                  string                 `json:"id"`
	Status              ApplicationStatus      `json:"applicationStatus"`
	ApplicationType     ApplicationType        `json:"applicationType"`
	MajorVersion        int                    `json:"majorVersion"`
	UserID              string                 `json:"userId"`
	Authors             []string               `json:"authorIds,omitempty"`
	Publisher           string                 `json:"publisher"`
	CustodianManagers   []string               `json:"custodianManagerIds,omitempty"`
	CustodianMembers    []string               `json:"custodianMemberIds,omitempty"`
	QuestionAnswers     map[string]interface{} `json:"questionAnswers"`
	AmendmentIterations []AmendmentIteration   `json:"amendmentIterations"`
	Workflow            *Workflow              `json:"workflow,omitempty"`
	DateSubmitted       *time.Time             `json:"dateSubmitted,omitempty"`
	DateReviewStart     *time.Time             `json:"dateReviewStart,omitempty"`
	DateFinalStatus     *time.Time             `json:"dateFinalStatus,omitempty"`
	DecisionBy          string                 `json:"decisionBy,omitempty"`
	DecisionComments    string                 `json:"decisionComments,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

// ApplicantIDs returns the main applicant followed by the contributing authors.
func (a *Application) ApplicantIDs() []string {
	ids := make([]string, 0, len(a.Authors)+1)
	if a.UserID != "" {
		ids = append(ids, a.UserID)
	}
	return appendUnique(ids, a.Authors...)
}

// IsManager reports whether userID manages the custodian team.
func (a *Application) IsManager(userID string) bool {
	return contains(a.CustodianManagers, userID)
}

// IsCustodianMember reports whether userID belongs to the custodian team in any role.
func (a *Application) IsCustodianMember(userID string) bool {
	return contains(a.CustodianManagers, userID) || contains(a.CustodianMembers, userID)
}

// IsApplicant reports whether userID is the main applicant or an author.
func (a *Application) IsApplicant(userID string) bool {
	return a.UserID == userID || contains(a.Authors, userID)
}

// Clone returns a deep copy. Answer values are copied structurally for maps and
// slices; scalar answers are shared.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	out.Authors = cloneStrings(a.Authors)
	out.CustodianManagers = cloneStrings(a.CustodianManagers)
	out.CustodianMembers = cloneStrings(a.CustodianMembers)
	out.QuestionAnswers = cloneAnswers(a.QuestionAnswers)
	out.DateSubmitted = cloneTime(a.DateSubmitted)
	out.DateReviewStart = cloneTime(a.DateReviewStart)
	out.DateFinalStatus = cloneTime(a.DateFinalStatus)
	if a.AmendmentIterations != nil {
		out.AmendmentIterations = make([]AmendmentIteration, len(a.AmendmentIterations))
		for i := range a.AmendmentIterations {
			out.AmendmentIterations[i] = a.AmendmentIterations[i].Clone()
		}
	}
	if a.Workflow != nil {
		wf := a.Workflow.Clone()
		out.Workflow = &wf
	}
	return &out
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// MergeRecipients joins recipient lists, dropping blanks and duplicates while
// keeping first-seen order.
func MergeRecipients(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = appendUnique(out, l...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneAnswers(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneAnswers(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return cloneStrings(t)
	default:
		return v
	}
}
