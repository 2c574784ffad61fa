// Package repository stores applications as JSONB documents guarded by an
// integer version column.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/common/logger"
	"dar-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type ApplicationRepository struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewApplicationRepository(db *sql.DB, log logger.Logger) *ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "repository"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new application at version 1, assigning an id when empty.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) (*models.Application, int, error) {
	out := app.Clone()
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := r.now()
	out.CreatedAt = now
	out.UpdatedAt = now

	doc, err := json.Marshal(out)
	if err != nil {
		return nil, 0, fmt.Errorf("encode application %s: %w", out.ID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO dar_applications (id, version, status, team_id, document, created_at, updated_at)
		 VALUES ($1, 1, $2, $3, $4, $5, $5)`,
		out.ID, string(out.Status), out.Publisher, string(doc), now,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, 0, errors.NewDuplicateApplicationError(out.ID)
		}
		return nil, 0, errors.NewQueryExecutionFailedError("insert application", err)
	}
	return out, 1, nil
}

// Load returns the application and its current version.
func (r *ApplicationRepository) Load(ctx context.Context, id string) (*models.Application, int, error) {
	var (
		version int
		doc     []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT version, document FROM dar_applications WHERE id = $1`, id,
	).Scan(&version, &doc)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, 0, errors.NewNotFoundError("application", id)
	}
	if err != nil {
		return nil, 0, errors.NewQueryExecutionFailedError("load application", err)
	}

	var app models.Application
	if err := json.Unmarshal(doc, &app); err != nil {
		return nil, 0, fmt.Errorf("decode application %s: %w", id, err)
	}
	return &app, version, nil
}

// Save writes app if the stored version still equals expectedVersion and
// returns the new version. A mismatch is a retryable conflict.
func (r *ApplicationRepository) Save(ctx context.Context, app *models.Application, expectedVersion int) (int, error) {
	doc, err := json.Marshal(app)
	if err != nil {
		return 0, fmt.Errorf("encode application %s: %w", app.ID, err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE dar_applications
		 SET document = $1, status = $2, version = version + 1, updated_at = $3
		 WHERE id = $4 AND version = $5`,
		string(doc), string(app.Status), r.now(), app.ID, expectedVersion,
	)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("save application", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("save application", err)
	}
	if n == 0 {
		r.logger.Warn("version conflict", map[string]interface{}{
			"applicationId":   app.ID,
			"expectedVersion": expectedVersion,
		})
		return 0, errors.NewVersionConflictError(app.ID, expectedVersion)
	}
	return expectedVersion + 1, nil
}
