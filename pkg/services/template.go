package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// Template manages organization action templates. Locked templates cannot be
// modified through this service; the lock is the integrity guarantee actions
// rely on when they skip caller overrides.
type Template struct {
	store persistence.TemplateStore
}

// NewTemplate creates the template service.
func NewTemplate(store persistence.TemplateStore) *Template {
	return &Template{store: store}
}

// FetchByID retrieves a template visible to the organization.
func (t *Template) FetchByID(ctx context.Context, organizationID, id string) (*models.ActionTemplate, error) {
	return t.store.TemplateByID(ctx, organizationID, id)
}

// Create stores a new organization template. The system prefix is reserved.
func (t *Template) Create(ctx context.Context, template *models.ActionTemplate) (*models.ActionTemplate, error) {
	if template == nil {
		return nil, ErrTemplateNil
	}

	if template.OrganizationID == "" {
		return nil, ErrOrganizationRequired
	}

	if template.Channel != models.ChannelEmail && template.Channel != models.ChannelSMS {
		return nil, ErrTemplateChannels
	}

	if template.ID == "" {
		template.ID = uuid.New().String()
	}

	if strings.HasPrefix(template.ID, models.SystemTemplatePrefix) {
		return nil, ErrReservedPrefix
	}

	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now

	if err := t.store.SaveTemplate(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	return template, nil
}

// Update modifies an unlocked template. Updating a locked template fails.
func (t *Template) Update(ctx context.Context, organizationID, id string, subject, body string) (*models.ActionTemplate, error) {
	existing, err := t.store.TemplateByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if existing.IsLocked || existing.IsSystem() {
		return nil, fmt.Errorf("%w: %s", ErrTemplateLocked, id)
	}

	if subject != "" {
		existing.Subject = subject
	}

	if body != "" {
		existing.Body = body
	}

	existing.UpdatedAt = time.Now().UTC()

	if err := t.store.SaveTemplate(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	return existing, nil
}
