package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sellvid/backend/internal/models"
)

// GetStylePreset retrieves a visual style preset by ID.
func (db *DB) GetStylePreset(ctx context.Context, id uuid.UUID) (*models.StylePreset, error) {
	query := `
		SELECT id, slug, name, directive, style_json, created_at, updated_at
		FROM style_presets
		WHERE id = $1
	`

	preset := &models.StylePreset{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&preset.ID, &preset.Slug, &preset.Name, &preset.Directive,
		&preset.StyleJSON, &preset.CreatedAt, &preset.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("style preset not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get style preset: %w", err)
	}

	return preset, nil
}

// GetStylePresetBySlug retrieves a preset by its machine name (e.g. "studio_minimal").
func (db *DB) GetStylePresetBySlug(ctx context.Context, slug string) (*models.StylePreset, error) {
	query := `
		SELECT id, slug, name, directive, style_json, created_at, updated_at
		FROM style_presets
		WHERE slug = $1
	`

	preset := &models.StylePreset{}
	err := db.QueryRowContext(ctx, query, slug).Scan(
		&preset.ID, &preset.Slug, &preset.Name, &preset.Directive,
		&preset.StyleJSON, &preset.CreatedAt, &preset.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("style preset %q not found", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get style preset: %w", err)
	}

	return preset, nil
}

func (db *DB) ListStylePresets(ctx context.Context) ([]models.StylePreset, error) {
	query := `
		SELECT id, slug, name, directive, style_json, created_at, updated_at
		FROM style_presets
		ORDER BY slug
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query style presets: %w", err)
	}
	defer rows.Close()

	var presets []models.StylePreset
	for rows.Next() {
		var preset models.StylePreset
		err := rows.Scan(
			&preset.ID, &preset.Slug, &preset.Name, &preset.Directive,
			&preset.StyleJSON, &preset.CreatedAt, &preset.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan style preset: %w", err)
		}
		presets = append(presets, preset)
	}

	return presets, rows.Err()
}
