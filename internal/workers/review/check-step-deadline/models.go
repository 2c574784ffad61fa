// internal/workers/review/check-step-deadline/models.go
package checkstepdeadline

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	DeadlineStatus string `json:"deadlineStatus"` // "none", "approaching", "passed"
	StepName       string `json:"stepName,omitempty"`
	Deadline       string `json:"deadline,omitempty"` // ISO 8601
}

const StatusNone = "none"
