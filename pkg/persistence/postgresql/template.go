package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
)

// TemplateByID retrieves a template visible to the organization: its own
// templates plus system templates (empty organization id).
func (p *Persistence) TemplateByID(ctx context.Context, organizationID, id string) (*models.ActionTemplate, error) {
	query := `
		SELECT
			id
		  , organization_id
		  , name
		  , channel
		  , COALESCE(subject, '')
		  , body
		  , is_locked
		  , created_at
		  , updated_at
		FROM action_templates
		WHERE id = $1 AND (organization_id = '' OR organization_id = $2)
	`

	var template models.ActionTemplate

	err := p.db.QueryRowContext(ctx, query, id, organizationID).Scan(
		&template.ID, &template.OrganizationID, &template.Name, &template.Channel,
		&template.Subject, &template.Body, &template.IsLocked,
		&template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	return &template, nil
}

// SaveTemplate creates or replaces a template.
func (p *Persistence) SaveTemplate(ctx context.Context, template *models.ActionTemplate) error {
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	query := `
		INSERT INTO action_templates (
			id, organization_id, name, channel, subject, body, is_locked, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			channel = EXCLUDED.channel,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			is_locked = EXCLUDED.is_locked,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.ExecContext(ctx, query,
		template.ID, template.OrganizationID, template.Name, template.Channel,
		template.Subject, template.Body, template.IsLocked,
		template.CreatedAt, template.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	return nil
}
