package file

import (
	"context"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// TemplateByID retrieves an organization's template by id. System templates
// (empty OrganizationID) are visible to every organization.
func (fp *Persistence) TemplateByID(_ context.Context, organizationID, id string) (*models.ActionTemplate, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	raw, exists := fp.templates[id]
	if !exists {
		return nil, persistence.ErrTemplateNotFound
	}

	template, err := decode[models.ActionTemplate](raw)
	if err != nil {
		return nil, err
	}

	if template.OrganizationID != "" && template.OrganizationID != organizationID {
		return nil, persistence.ErrTemplateNotFound
	}

	return template, nil
}

// SaveTemplate creates or replaces a template.
func (fp *Persistence) SaveTemplate(_ context.Context, template *models.ActionTemplate) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	raw, err := encode(template)
	if err != nil {
		return err
	}

	fp.templates[template.ID] = raw

	return fp.flush("templates.json", fp.templates)
}
