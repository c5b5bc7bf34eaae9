package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sellvid/backend/internal/models"
)

func (db *DB) CreateBatch(ctx context.Context, batch *models.BatchJob) error {
	query := `
		INSERT INTO batch_jobs (
			id, user_id, name, formats, duration_sec, scene_count,
			provider, style_preset_id, brand_overlay_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		batch.ID, batch.UserID, batch.Name, batch.Formats, batch.DurationSec,
		batch.SceneCount, batch.Provider, batch.StylePresetID, batch.BrandOverlayRef,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
}

func (db *DB) GetBatch(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	query := `
		SELECT
			id, user_id, name, formats, duration_sec, scene_count,
			provider, style_preset_id, brand_overlay_ref, created_at, updated_at
		FROM batch_jobs
		WHERE id = $1
	`

	batch := &models.BatchJob{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID, &batch.UserID, &batch.Name, &batch.Formats, &batch.DurationSec,
		&batch.SceneCount, &batch.Provider, &batch.StylePresetID, &batch.BrandOverlayRef,
		&batch.CreatedAt, &batch.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return batch, nil
}

func (db *DB) ListBatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BatchJob, error) {
	query := `
		SELECT
			id, user_id, name, formats, duration_sec, scene_count,
			provider, style_preset_id, brand_overlay_ref, created_at, updated_at
		FROM batch_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []models.BatchJob
	for rows.Next() {
		var batch models.BatchJob
		err := rows.Scan(
			&batch.ID, &batch.UserID, &batch.Name, &batch.Formats, &batch.DurationSec,
			&batch.SceneCount, &batch.Provider, &batch.StylePresetID, &batch.BrandOverlayRef,
			&batch.CreatedAt, &batch.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}

	return batches, rows.Err()
}

func (db *DB) CountBatches(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batch_jobs WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// BatchItemCounts returns (total, completed, failed) item counts for a batch,
// used to report "N of M items complete" progress.
func (db *DB) BatchItemCounts(ctx context.Context, batchID uuid.UUID) (total, completed, failed int, err error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3)
		FROM video_items
		WHERE batch_id = $1
	`
	err = db.QueryRowContext(ctx, query, batchID,
		models.ItemStatusCompleted, models.ItemStatusFailed,
	).Scan(&total, &completed, &failed)
	return total, completed, failed, err
}
