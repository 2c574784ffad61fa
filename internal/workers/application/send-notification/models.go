// internal/workers/application/send-notification/models.go
package sendnotification

// Input is the job payload. It carries the same fields as a NotificationEvent.
type Input struct {
	RecipientIDs  []string               `json:"recipientIds"`
	Category      string                 `json:"category"`
	Message       string                 `json:"message"`
	ApplicationID string                 `json:"relatedId"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationIDs []string `json:"notificationIds"`
	Status          string   `json:"status"` // "sent", "partial", "disabled"
	SentAt          string   `json:"sentAt"` // ISO 8601
}

// Contact is the cached delivery address of one user.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Statuses
const (
	StatusSent     = "sent"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
