package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sellvid/backend/internal/models"
)

const itemColumns = `
	id, batch_id, row_index, text_content, product_image_url,
	style_override, formats_override, provider_override,
	duration_override, scene_count_override, status, error_message,
	created_at, updated_at
`

func scanItem(row interface{ Scan(...interface{}) error }, item *models.VideoItem) error {
	return row.Scan(
		&item.ID, &item.BatchID, &item.RowIndex, &item.TextContent, &item.ProductImageURL,
		&item.StyleOverride, &item.FormatsOverride, &item.ProviderOverride,
		&item.DurationOverride, &item.SceneCountOverride, &item.Status, &item.ErrorMessage,
		&item.CreatedAt, &item.UpdatedAt,
	)
}

func (db *DB) CreateItem(ctx context.Context, item *models.VideoItem) error {
	query := `
		INSERT INTO video_items (
			id, batch_id, row_index, text_content, product_image_url,
			style_override, formats_override, provider_override,
			duration_override, scene_count_override, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		item.ID, item.BatchID, item.RowIndex, item.TextContent, item.ProductImageURL,
		item.StyleOverride, item.FormatsOverride, item.ProviderOverride,
		item.DurationOverride, item.SceneCountOverride, item.Status,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (db *DB) GetItem(ctx context.Context, id uuid.UUID) (*models.VideoItem, error) {
	query := `SELECT ` + itemColumns + ` FROM video_items WHERE id = $1`

	item := &models.VideoItem{}
	err := scanItem(db.QueryRowContext(ctx, query, id), item)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// GetBatchItems returns all items of a batch in stable input-row order.
func (db *DB) GetBatchItems(ctx context.Context, batchID uuid.UUID) ([]models.VideoItem, error) {
	query := `SELECT ` + itemColumns + ` FROM video_items WHERE batch_id = $1 ORDER BY row_index`

	rows, err := db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.VideoItem
	for rows.Next() {
		var item models.VideoItem
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetPendingItems returns a batch's items still awaiting processing, in row order.
func (db *DB) GetPendingItems(ctx context.Context, batchID uuid.UUID) ([]models.VideoItem, error) {
	query := `SELECT ` + itemColumns + ` FROM video_items WHERE batch_id = $1 AND status = $2 ORDER BY row_index`

	rows, err := db.QueryContext(ctx, query, batchID, models.ItemStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending items: %w", err)
	}
	defer rows.Close()

	var items []models.VideoItem
	for rows.Next() {
		var item models.VideoItem
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (db *DB) UpdateItemStatus(ctx context.Context, id uuid.UUID, status models.ItemStatus) error {
	query := `UPDATE video_items SET status = $1, error_message = NULL, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

func (db *DB) UpdateItemError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE video_items
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.ItemStatusFailed, errorMessage, id)
	return err
}

// ResetItem returns an item to pending and clears its scenes and rendered
// outputs, as the first step of whole-item regeneration. Runs in a single
// transaction so a crash cannot leave a half-cleared item.
func (db *DB) ResetItem(ctx context.Context, id uuid.UUID) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE item_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete scenes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rendered_outputs WHERE item_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete rendered outputs: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE video_items SET status = $1, error_message = NULL, updated_at = NOW() WHERE id = $2`,
		models.ItemStatusPending, id,
	); err != nil {
		return fmt.Errorf("failed to reset item status: %w", err)
	}

	return tx.Commit()
}
