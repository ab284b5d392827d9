// Package template resolves message templates for notification-emitting nodes
// and substitutes {variable_name} placeholders from the execution scope.
package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// Content mode for notification actions.
const (
	ModeTemplate = "template" // content comes from a stored template
	ModeCustom   = "custom"   // content is supplied inline on the action
)

var (
	// ErrTemplateNotFound is returned for unknown template ids.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrMissingContent is returned in custom mode when no content is supplied.
	ErrMissingContent = errors.New("missing template content")
)

// ResolvedTemplate is the final content an action sends, after override rules.
type ResolvedTemplate struct {
	Subject string
	Body    string
	Channel models.NotificationChannel
	Locked  bool
}

// Resolver looks up templates and applies the locked-template override rules.
type Resolver struct {
	store  persistence.TemplateStore
	system map[string]*models.ActionTemplate
}

// NewResolver creates a resolver over the organization template store and an
// optional set of system templates. System ids use the reserved "sys." prefix
// and are matched before the store is consulted.
func NewResolver(store persistence.TemplateStore, system []*models.ActionTemplate) *Resolver {
	systemByID := make(map[string]*models.ActionTemplate, len(system))
	for _, template := range system {
		systemByID[template.ID] = template
	}

	return &Resolver{store: store, system: systemByID}
}

// ResolveTemplate returns the template for the id, checking system templates
// first and falling back to the organization's own store.
func (r *Resolver) ResolveTemplate(ctx context.Context, templateID, organizationID string) (*models.ActionTemplate, error) {
	if template, exists := r.system[templateID]; exists {
		return template, nil
	}

	template, err := r.store.TemplateByID(ctx, organizationID, templateID)
	if err != nil {
		if persistence.IsTemplateNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}

		return nil, fmt.Errorf("failed to resolve template %s: %w", templateID, err)
	}

	return template, nil
}

// ValidateContent produces the final content for an action. In template mode a
// locked template ignores any caller-supplied overrides: the stored content is
// used verbatim, an integrity guarantee for system and compliance templates.
// In custom mode inline content is mandatory.
func ValidateContent(mode string, template *models.ActionTemplate, provided *models.TemplateContent) (*ResolvedTemplate, error) {
	switch mode {
	case ModeCustom:
		if provided == nil || (provided.Subject == "" && provided.Body == "") {
			return nil, ErrMissingContent
		}

		return &ResolvedTemplate{
			Subject: provided.Subject,
			Body:    provided.Body,
		}, nil

	case ModeTemplate, "":
		if template == nil {
			return nil, ErrTemplateNotFound
		}

		resolved := &ResolvedTemplate{
			Subject: template.Subject,
			Body:    template.Body,
			Channel: template.Channel,
			Locked:  template.IsLocked,
		}

		if template.IsLocked {
			return resolved, nil
		}

		if provided != nil {
			if provided.Subject != "" {
				resolved.Subject = provided.Subject
			}

			if provided.Body != "" {
				resolved.Body = provided.Body
			}
		}

		return resolved, nil

	default:
		return nil, fmt.Errorf("unknown content mode %q", mode)
	}
}
