// internal/workers/application/send-notification/templates.go
package sendnotification

import (
	"fmt"
	"strings"

	"dar-workers/internal/models"
)

var subjects = []models.NotificationTemplate{
	{Category: models.CategoryApplicationSubmitted, Subject: "Data access request {{applicationId}} submitted", Priority: "normal"},
	{Category: models.CategoryAmendmentsReturned, Subject: "Changes requested on application {{applicationId}}", Priority: "normal"},
	{Category: models.CategoryAmendmentsResubmitted, Subject: "Application {{applicationId}} resubmitted", Priority: "normal"},
	{Category: models.CategoryReviewStarted, Subject: "Review started for application {{applicationId}}", Priority: "normal"},
	{Category: models.CategoryStepAdvanced, Subject: "Your review phase has started", Priority: "normal"},
	{Category: models.CategoryFinalDecisionRequired, Subject: "Final decision required for application {{applicationId}}", Priority: "high"},
	{Category: models.CategoryDeadlineApproaching, Subject: "Review deadline approaching", Priority: "high"},
	{Category: models.CategoryDeadlinePassed, Subject: "Review deadline passed", Priority: "high"},
	{Category: models.CategoryStepOverride, Subject: "Review phase completed by override", Priority: "normal"},
	{Category: models.CategoryDecisionRecorded, Subject: "A decision has been made on application {{applicationId}}", Priority: "normal"},
	{Category: models.CategoryApplicationWithdrawn, Subject: "Application {{applicationId}} withdrawn", Priority: "normal"},
}

func loadTemplates() map[string]models.NotificationTemplate {
	out := make(map[string]models.NotificationTemplate, len(subjects))
	for _, t := range subjects {
		out[string(t.Category)] = t
	}
	return out
}

// renderTemplate substitutes {{key}} placeholders and drops any left unresolved.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return strings.Join(strings.Fields(result), " ")
}
