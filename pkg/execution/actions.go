package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/template"
)

// maxWebhookResponseBytes bounds how much of a webhook response lands in the
// node output and the execution log.
const maxWebhookResponseBytes = 4096

// executeAction dispatches on the action kind and returns the node output.
func (e *Executor) executeAction(ctx context.Context, run *runState, node *models.Node, scope *Scope) (map[string]any, error) {
	cfg := node.Action

	switch cfg.Kind {
	case models.ActionEmail, models.ActionSMS:
		return e.sendNotification(ctx, run, cfg, scope)
	case models.ActionWebhook:
		return e.callWebhook(ctx, cfg, scope)
	case models.ActionCreateRecord:
		return e.createRecord(ctx, run, cfg, scope)
	case models.ActionUpdateRecord:
		return e.updateRecord(ctx, run, cfg, scope)
	default:
		return nil, fmt.Errorf("unknown action kind %q", cfg.Kind)
	}
}

// sendNotification resolves the template (honoring locked-template rules),
// renders placeholders from scope, and hands the content to the sender.
func (e *Executor) sendNotification(ctx context.Context, run *runState, cfg *models.ActionConfig, scope *Scope) (map[string]any, error) {
	var stored *models.ActionTemplate

	if cfg.Mode != template.ModeCustom {
		resolved, err := e.templates.ResolveTemplate(ctx, cfg.TemplateID, run.workflow.OrganizationID)
		if err != nil {
			return nil, err
		}

		stored = resolved
	}

	content, err := template.ValidateContent(cfg.Mode, stored, cfg.Content)
	if err != nil {
		return nil, err
	}

	vars := scope.Snapshot()

	channel := models.ChannelEmail
	if cfg.Kind == models.ActionSMS {
		channel = models.ChannelSMS
	}

	recipient := template.Render(cfg.Recipient, vars)
	if missing := template.ValidateRequiredVariables(cfg.Recipient, vars); len(missing) > 0 {
		return nil, fmt.Errorf("recipient has unresolved placeholders: %s", strings.Join(missing, ", "))
	}

	rendered := &models.TemplateContent{
		Subject: template.Render(content.Subject, vars),
		Body:    template.Render(content.Body, vars),
	}

	result, err := e.sender.Send(ctx, channel, rendered, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cfg.Kind, err)
	}

	return map[string]any{
		"success":             result.Success,
		"provider_message_id": result.ProviderMessageID,
		"recipient":           recipient,
	}, nil
}

// callWebhook issues an HTTP request. Fields (after placeholder resolution)
// become the JSON body; without fields the scope snapshot is sent.
func (e *Executor) callWebhook(ctx context.Context, cfg *models.ActionConfig, scope *Scope) (map[string]any, error) {
	vars := scope.Snapshot()

	url := template.Render(cfg.URL, vars)
	if missing := template.ValidateRequiredVariables(cfg.URL, vars); len(missing) > 0 {
		return nil, fmt.Errorf("webhook URL has unresolved placeholders: %s", strings.Join(missing, ", "))
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	payload := any(vars)
	if len(cfg.Fields) > 0 {
		payload = resolveFields(cfg.Fields, vars)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range cfg.Headers {
		req.Header.Set(key, template.Render(value, vars))
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"response":    string(responseBody),
	}, nil
}

func (e *Executor) createRecord(ctx context.Context, run *runState, cfg *models.ActionConfig, scope *Scope) (map[string]any, error) {
	fields := resolveFields(cfg.Fields, scope.Snapshot())

	recordID, err := e.records.CreateRecord(ctx, run.workflow.OrganizationID, cfg.Model, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", cfg.Model, err)
	}

	return map[string]any{"record_id": recordID, "model": cfg.Model}, nil
}

func (e *Executor) updateRecord(ctx context.Context, run *runState, cfg *models.ActionConfig, scope *Scope) (map[string]any, error) {
	vars := scope.Snapshot()

	recordID := template.Render(cfg.RecordID, vars)
	if missing := template.ValidateRequiredVariables(cfg.RecordID, vars); len(missing) > 0 {
		return nil, fmt.Errorf("record id has unresolved placeholders: %s", strings.Join(missing, ", "))
	}

	fields := resolveFields(cfg.Fields, vars)

	if err := e.records.UpdateRecord(ctx, run.workflow.OrganizationID, cfg.Model, recordID, fields); err != nil {
		return nil, fmt.Errorf("failed to update %s record %s: %w", cfg.Model, recordID, err)
	}

	return map[string]any{"record_id": recordID, "model": cfg.Model}, nil
}

// resolveFields renders placeholder strings in field values. Non-string values
// pass through untouched; nested maps are resolved recursively.
func resolveFields(fields map[string]any, vars map[string]any) map[string]any {
	resolved := make(map[string]any, len(fields))

	for key, value := range fields {
		switch typed := value.(type) {
		case string:
			resolved[key] = template.Render(typed, vars)
		case map[string]any:
			resolved[key] = resolveFields(typed, vars)
		default:
			resolved[key] = value
		}
	}

	return resolved
}
