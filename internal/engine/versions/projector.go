// Package versions folds amendment iterations into the answers a given party
// is allowed to see.
package versions

import (
	"time"

	"dar-workers/internal/models"
)

// VisibleIterations returns the iterations userType may observe, in creation
// order, with index positions preserved. Applicants see iterations the
// custodian has released. Custodians see submitted iterations plus the open
// iteration with its draft answers stripped. Admins see everything.
func VisibleIterations(app *models.Application, userType models.UserType) []models.AmendmentIteration {
	out := make([]models.AmendmentIteration, 0, len(app.AmendmentIterations))
	for _, it := range app.AmendmentIterations {
		switch userType {
		case models.UserTypeApplicant:
			if !it.IsReturned() {
				continue
			}
			out = append(out, it.Clone())
		case models.UserTypeCustodian:
			if it.IsOpen() {
				out = append(out, stripAnswers(it))
				continue
			}
			out = append(out, it.Clone())
		default:
			out = append(out, it.Clone())
		}
	}
	return out
}

// Project returns the effective answers for userType after folding iterations
// 0..upto into the base answers. upto is clamped to the last index; a negative
// upto yields the base answers only.
func Project(app *models.Application, userType models.UserType, upto int) map[string]interface{} {
	effective := make(map[string]interface{}, len(app.QuestionAnswers))
	for k, v := range app.QuestionAnswers {
		effective[k] = v
	}
	if upto < 0 || len(app.AmendmentIterations) == 0 {
		return effective
	}
	if upto > len(app.AmendmentIterations)-1 {
		upto = len(app.AmendmentIterations) - 1
	}

	type stamped struct {
		answer interface{}
		at     time.Time
	}
	latest := make(map[string]stamped)

	for i := 0; i <= upto; i++ {
		it, ok := visible(app.AmendmentIterations[i], userType)
		if !ok {
			continue
		}
		for questionID, amendment := range it.QuestionAnswers {
			if !amendment.HasAnswer() {
				continue
			}
			var at time.Time
			if amendment.DateUpdated != nil {
				at = *amendment.DateUpdated
			}
			// later iterations win ties
			if prev, seen := latest[questionID]; seen && prev.at.After(at) {
				continue
			}
			latest[questionID] = stamped{answer: amendment.Answer, at: at}
		}
	}

	for questionID, s := range latest {
		effective[questionID] = s.answer
	}
	return effective
}

// Current projects every iteration visible to userType.
func Current(app *models.Application, userType models.UserType) map[string]interface{} {
	return Project(app, userType, len(app.AmendmentIterations)-1)
}

// HistoricalAnswer returns the answer for questionID as committed before the
// iteration at index before.
func HistoricalAnswer(app *models.Application, questionID string, before int) interface{} {
	return Project(app, models.UserTypeCustodian, before-1)[questionID]
}

func visible(it models.AmendmentIteration, userType models.UserType) (models.AmendmentIteration, bool) {
	switch userType {
	case models.UserTypeApplicant:
		return it, it.IsReturned()
	case models.UserTypeCustodian:
		if it.IsOpen() {
			return models.AmendmentIteration{}, false
		}
		return it, true
	default:
		return it, true
	}
}

func stripAnswers(it models.AmendmentIteration) models.AmendmentIteration {
	out := it.Clone()
	for k, a := range out.QuestionAnswers {
		if !a.Requested {
			delete(out.QuestionAnswers, k)
			continue
		}
		out.QuestionAnswers[k] = a.WithoutAnswer()
	}
	return out
}
