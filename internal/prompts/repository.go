// Package prompts stores the summary prompt templates that operators can
// tune per document category without a redeploy.
package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no active template exists for a category.
var ErrNotFound = errors.New("prompt template not found")

type Template struct {
	ID        uuid.UUID
	Category  string
	Name      string
	Content   string
	Active    bool
	UpdatedAt time.Time
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindActive returns the content of the most recently updated active
// template for the category.
func (r *Repository) FindActive(ctx context.Context, category string) (string, error) {
	const query = `
		SELECT content
		FROM prompt_templates
		WHERE category = $1 AND active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1`

	var content string
	err := r.db.QueryRowContext(ctx, query, category).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find active template: %w", err)
	}
	return content, nil
}

// Create inserts a template. A newly created active template supersedes
// older ones by updated_at ordering; nothing is deactivated.
func (r *Repository) Create(ctx context.Context, t Template) (uuid.UUID, error) {
	const query = `
		INSERT INTO prompt_templates (id, category, name, content, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	var id uuid.UUID
	if err := r.db.QueryRowContext(ctx, query, t.ID, t.Category, t.Name, t.Content, t.Active).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("create template: %w", err)
	}
	return id, nil
}

// List returns all templates for a category, newest first.
func (r *Repository) List(ctx context.Context, category string) ([]Template, error) {
	const query = `
		SELECT id, category, name, content, active, updated_at
		FROM prompt_templates
		WHERE category = $1
		ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Category, &t.Name, &t.Content, &t.Active, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
