// internal/models/notification.go
package models

// NotificationCategory identifies the kind of user-facing notice.
type NotificationCategory string

const (
	CategoryApplicationSubmitted  NotificationCategory = "applicationSubmitted"
	CategoryAmendmentsReturned    NotificationCategory = "amendmentsReturned"
	CategoryAmendmentsResubmitted NotificationCategory = "amendmentsResubmitted"
	CategoryReviewStarted         NotificationCategory = "reviewStarted"
	CategoryStepAdvanced          NotificationCategory = "reviewPhaseStarted"
	CategoryFinalDecisionRequired NotificationCategory = "finalDecisionRequired"
	CategoryDeadlineApproaching   NotificationCategory = "deadlineWarning"
	CategoryDeadlinePassed        NotificationCategory = "deadlinePassed"
	CategoryStepOverride          NotificationCategory = "stepOverride"
	CategoryDecisionRecorded      NotificationCategory = "decisionRecorded"
	CategoryApplicationWithdrawn  NotificationCategory = "applicationWithdrawn"
)

// NotificationEvent is emitted by the service and delivered after commit.
type NotificationEvent struct {
	RecipientIDs []string             `json:"recipientIds"`
	Message      string               `json:"message"`
	Category     NotificationCategory `json:"category"`
	RelatedID    string               `json:"relatedId"`
}

// Notification is the delivery record written by the notification sender.
type Notification struct {
	ID          string               `json:"id"`
	RecipientID string               `json:"recipientId"`
	Category    NotificationCategory `json:"category"`
	Channel     string               `json:"channel"`
	Status      string               `json:"status"`
	RelatedID   string               `json:"relatedId"`
	SentAt      string               `json:"sentAt"`
}

// NotificationTemplate renders the email subject for a category.
type NotificationTemplate struct {
	Category NotificationCategory `json:"category"`
	Subject  string               `json:"subject"`
	Priority string               `json:"priority"`
}
