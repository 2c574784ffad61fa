package review

import (
	"time"

	"dar-workers/internal/models"
)

type DeadlineStatus string

const (
	DeadlineNone        DeadlineStatus = ""
	DeadlineApproaching DeadlineStatus = "approaching"
	DeadlinePassed      DeadlineStatus = "passed"
)

// Deadline is the expiry and reminder instant of a started step.
type Deadline struct {
	StepName   string    `json:"stepName"`
	Expiry     time.Time `json:"expiry"`
	ReminderAt time.Time `json:"reminderAt"`
}

// DeadlineFor computes the step deadline. ok is false when the step has not
// started or has no deadline configured.
func DeadlineFor(step models.WorkflowStep) (Deadline, bool) {
	if step.StartDateTime == nil || step.DeadlineDays <= 0 {
		return Deadline{}, false
	}
	expiry := step.StartDateTime.AddDate(0, 0, step.DeadlineDays)
	return Deadline{
		StepName:   step.StepName,
		Expiry:     expiry,
		ReminderAt: expiry.AddDate(0, 0, -step.ReminderOffsetDays),
	}, true
}

// Status classifies now against the deadline. Completed steps never report.
func (d Deadline) Status(now time.Time, completed bool) DeadlineStatus {
	switch {
	case completed:
		return DeadlineNone
	case now.After(d.Expiry):
		return DeadlinePassed
	case !now.Before(d.ReminderAt):
		return DeadlineApproaching
	default:
		return DeadlineNone
	}
}

// ActiveDeadline returns the active step's deadline state at now.
func ActiveDeadline(app *models.Application, now time.Time) (models.WorkflowStep, Deadline, DeadlineStatus, bool) {
	idx := ActiveStepIndex(app)
	if idx < 0 {
		return models.WorkflowStep{}, Deadline{}, DeadlineNone, false
	}
	step := app.Workflow.Steps[idx]
	d, ok := DeadlineFor(step)
	if !ok {
		return step, Deadline{}, DeadlineNone, false
	}
	return step, d, d.Status(now, step.Completed), true
}
