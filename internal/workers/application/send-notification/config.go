// internal/workers/application/send-notification/config.go
package sendnotification

import (
	"time"

	"dar-workers/internal/common/config"
)

type Config struct {
	EmailEnabled    bool
	SMSEnabled      bool
	FromEmail       string
	SMSCategories   []string
	ContactCacheTTL time.Duration
	Timeout         time.Duration
}

// LoadConfig maps the notifications section and the worker entry onto the handler config.
func LoadConfig(cfg *config.Config) *Config {
	n := cfg.Notifications
	w := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		EmailEnabled:    n.Email.Enabled,
		SMSEnabled:      n.SMS.Enabled,
		FromEmail:       n.Email.FromEmail,
		SMSCategories:   n.SMS.Categories,
		ContactCacheTTL: time.Duration(n.ContactCacheTTL) * time.Second,
		Timeout:         config.GetDuration(w.Timeout),
	}
}

func (c *Config) smsFor(category string) bool {
	if !c.SMSEnabled {
		return false
	}
	for _, cat := range c.SMSCategories {
		if cat == category {
			return true
		}
	}
	return false
}
