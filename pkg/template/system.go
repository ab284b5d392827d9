package template

import "github.com/flowhive/flowhive/pkg/models"

// SystemTemplates returns the built-in template catalog. System templates are
// locked: their content is always sent verbatim, regardless of caller
// overrides.
func SystemTemplates() []*models.ActionTemplate {
	return []*models.ActionTemplate{
		{
			ID:       models.SystemTemplatePrefix + "approval-request",
			Name:     "Approval request",
			Channel:  models.ChannelEmail,
			Subject:  "Approval needed: {workflow.name}",
			Body:     "A workflow step is waiting for your decision. Requested by {requested_by}.",
			IsLocked: true,
		},
		{
			ID:       models.SystemTemplatePrefix + "task-reminder",
			Name:     "Task reminder",
			Channel:  models.ChannelEmail,
			Subject:  "Reminder: {task.title}",
			Body:     "The task {task.title} is due on {task.due_date}.",
			IsLocked: true,
		},
		{
			ID:       models.SystemTemplatePrefix + "task-reminder-sms",
			Name:     "Task reminder (SMS)",
			Channel:  models.ChannelSMS,
			Body:     "Reminder: {task.title} is due {task.due_date}.",
			IsLocked: true,
		},
	}
}
