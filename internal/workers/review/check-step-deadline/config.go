// internal/workers/review/check-step-deadline/config.go
package checkstepdeadline

import (
	"time"

	"dar-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	w := config.GetWorkerConfig(cfg, TaskType)
	return &Config{Timeout: config.GetDuration(w.Timeout)}
}
