// internal/models/workflow.go
package models

import "time"

// Workflow is the ordered reviewer process attached to an application.
type Workflow struct {
	ID           string         `json:"id,omitempty"`
	WorkflowName string         `json:"workflowName"`
	Steps        []WorkflowStep `json:"steps"`
}

func (w Workflow) Clone() Workflow {
	out := w
	if w.Steps != nil {
		out.Steps = make([]WorkflowStep, len(w.Steps))
		for i := range w.Steps {
			out.Steps[i] = w.Steps[i].Clone()
		}
	}
	return out
}

// WorkflowStep is one reviewer phase. Pending steps are neither active nor
// completed.
type WorkflowStep struct {
	StepName           string           `json:"stepName"`
	Sections           []string         `json:"sections"`
	Reviewers          []string         `json:"reviewers"`
	Recommendations    []Recommendation `json:"recommendations"`
	Active             bool             `json:"active"`
	Completed          bool             `json:"completed"`
	StartDateTime      *time.Time       `json:"startDateTime,omitempty"`
	EndDateTime        *time.Time       `json:"endDateTime,omitempty"`
	DeadlineDays       int              `json:"deadline"`
	ReminderOffsetDays int              `json:"reminderOffset"`
}

// HasReviewer reports whether userID is assigned to the step.
func (s *WorkflowStep) HasReviewer(userID string) bool {
	return contains(s.Reviewers, userID)
}

// RecommendationBy returns the vote cast by reviewerID, if any.
func (s *WorkflowStep) RecommendationBy(reviewerID string) (Recommendation, bool) {
	for _, r := range s.Recommendations {
		if r.ReviewerID == reviewerID {
			return r, true
		}
	}
	return Recommendation{}, false
}

func (s WorkflowStep) Clone() WorkflowStep {
	out := s
	out.Sections = cloneStrings(s.Sections)
	out.Reviewers = cloneStrings(s.Reviewers)
	if s.Recommendations != nil {
		out.Recommendations = make([]Recommendation, len(s.Recommendations))
		copy(out.Recommendations, s.Recommendations)
	}
	out.StartDateTime = cloneTime(s.StartDateTime)
	out.EndDateTime = cloneTime(s.EndDateTime)
	return out
}

// Recommendation is a single reviewer vote.
type Recommendation struct {
	ReviewerID string    `json:"reviewer"`
	Approved   bool      `json:"approved"`
	Comments   string    `json:"comments,omitempty"`
	CreatedAt  time.Time `json:"createdDate"`
}
