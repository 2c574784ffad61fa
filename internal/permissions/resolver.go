// Package permissions resolves a caller's role on one application from the
// application's own party lists and the custodian team membership table.
package permissions

import (
	"context"
	"database/sql"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/common/logger"
	"dar-workers/internal/models"

	"github.com/lib/pq"
)

// AdminTeam is the team whose members may view every application.
const AdminTeam = "admin"

type Resolver struct {
	db     *sql.DB
	logger logger.Logger
}

func NewResolver(db *sql.DB, log logger.Logger) *Resolver {
	return &Resolver{db: db, logger: log}
}

// Resolve returns the actor for userID. A user with no relationship to the
// application resolves to an unauthorised actor, not an error.
func (r *Resolver) Resolve(ctx context.Context, userID string, app *models.Application) (models.Actor, error) {
	actor := models.Actor{UserID: userID}
	if userID == "" {
		return actor, nil
	}

	if app.IsApplicant(userID) {
		actor.UserType = models.UserTypeApplicant
		actor.Authorised = true
		return actor, nil
	}
	if app.IsManager(userID) || app.IsCustodianMember(userID) {
		actor.UserType = models.UserTypeCustodian
		actor.Authorised = true
		return actor, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT team_id, user_type FROM team_members WHERE user_id = $1 AND team_id = ANY($2)`,
		userID, pq.Array([]string{app.Publisher, AdminTeam}),
	)
	if err != nil {
		return actor, errors.NewQueryExecutionFailedError("team membership", err)
	}
	defer rows.Close()

	var custodian, admin bool
	for rows.Next() {
		var teamID, userType string
		if err := rows.Scan(&teamID, &userType); err != nil {
			return actor, errors.NewQueryExecutionFailedError("team membership", err)
		}
		switch {
		case teamID == AdminTeam:
			admin = true
		case teamID == app.Publisher && models.UserType(userType) == models.UserTypeCustodian:
			custodian = true
		}
	}
	if err := rows.Err(); err != nil {
		return actor, errors.NewQueryExecutionFailedError("team membership", err)
	}

	switch {
	case custodian:
		actor.UserType = models.UserTypeCustodian
		actor.Authorised = true
	case admin:
		actor.UserType = models.UserTypeAdmin
		actor.Authorised = true
	default:
		r.logger.Debug("user has no role on application", map[string]interface{}{
			"userId":        userID,
			"applicationId": app.ID,
		})
	}
	return actor, nil
}
