package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/service/template"
)

// TemplateRepo implements template.Repository against PostgreSQL.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

func (r *TemplateRepo) Get(ctx context.Context, id string) (*domain.Template, error) {
	t := &domain.Template{}
	var extends sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, extends_id::text, subject, body_html,
		       autogenerate_plaintext_body, body_plaintext
		FROM impression_templates
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &extends, &t.Subject, &t.BodyHTML, &t.AutogeneratePlaintext, &t.BodyPlaintext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, template.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	t.ExtendsID = stringPtr(extends)
	return t, nil
}
