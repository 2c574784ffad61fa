// internal/workers/application/send-notification/contacts.go
package sendnotification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"dar-workers/internal/common/database"
	apperrors "dar-workers/internal/common/errors"
	"dar-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const contactKeyPrefix = "dar:contact:"

var errContactNotFound = errors.New("contact not found")

// contactStore reads user contacts from Postgres through a Redis cache.
// A nil cache disables caching.
type contactStore struct {
	db     *sql.DB
	cache  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func (s *contactStore) lookup(ctx context.Context, userID string) (Contact, error) {
	key := contactKeyPrefix + userID

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var c Contact
			if json.Unmarshal([]byte(raw), &c) == nil {
				return c, nil
			}
		} else if !database.IsMiss(err) {
			s.logger.Warn("contact cache unavailable", map[string]interface{}{"error": err})
		}
	}

	var email, phone sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT email, phone FROM user_contacts WHERE user_id = $1`, userID,
	).Scan(&email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, errContactNotFound
	}
	if err != nil {
		return Contact{}, apperrors.NewQueryExecutionFailedError("contact lookup", err)
	}

	c := Contact{Email: email.String, Phone: phone.String}
	if s.cache != nil {
		if data, err := json.Marshal(c); err == nil {
			s.cache.Set(ctx, key, data, s.ttl)
		}
	}
	return c, nil
}
