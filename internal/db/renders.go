package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sellvid/backend/internal/models"
)

const renderColumns = `
	id, item_id, format, status, artifact_ref, error_message, created_at, updated_at
`

func scanRender(row interface{ Scan(...interface{}) error }, out *models.RenderedOutput) error {
	return row.Scan(
		&out.ID, &out.ItemID, &out.Format, &out.Status,
		&out.ArtifactRef, &out.ErrorMessage, &out.CreatedAt, &out.UpdatedAt,
	)
}

// UpsertRenderedOutput creates or replaces the output row for (item, format).
// A re-render of one format only ever touches its own row.
func (db *DB) UpsertRenderedOutput(ctx context.Context, out *models.RenderedOutput) error {
	query := `
		INSERT INTO rendered_outputs (id, item_id, format, status, artifact_ref, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id, format) DO UPDATE
		SET status = EXCLUDED.status,
		    artifact_ref = EXCLUDED.artifact_ref,
		    error_message = EXCLUDED.error_message,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		out.ID, out.ItemID, out.Format, out.Status, out.ArtifactRef, out.ErrorMessage,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
}

func (db *DB) GetRenderedOutput(ctx context.Context, itemID uuid.UUID, format string) (*models.RenderedOutput, error) {
	query := `SELECT ` + renderColumns + ` FROM rendered_outputs WHERE item_id = $1 AND format = $2`

	out := &models.RenderedOutput{}
	err := scanRender(db.QueryRowContext(ctx, query, itemID, format), out)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rendered output not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rendered output: %w", err)
	}

	return out, nil
}

// GetItemOutputs returns all rendered outputs for an item, stable by format.
func (db *DB) GetItemOutputs(ctx context.Context, itemID uuid.UUID) ([]models.RenderedOutput, error) {
	query := `SELECT ` + renderColumns + ` FROM rendered_outputs WHERE item_id = $1 ORDER BY format`

	rows, err := db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rendered outputs: %w", err)
	}
	defer rows.Close()

	var outputs []models.RenderedOutput
	for rows.Next() {
		var out models.RenderedOutput
		if err := scanRender(rows, &out); err != nil {
			return nil, fmt.Errorf("failed to scan rendered output: %w", err)
		}
		outputs = append(outputs, out)
	}

	return outputs, rows.Err()
}

// GetBatchCompletedOutputs returns every completed output of a batch joined
// with its item's row index, ordered for stable packaging.
func (db *DB) GetBatchCompletedOutputs(ctx context.Context, batchID uuid.UUID) ([]models.RenderedOutput, map[uuid.UUID]int, error) {
	query := `
		SELECT r.id, r.item_id, r.format, r.status, r.artifact_ref, r.error_message,
		       r.created_at, r.updated_at, i.row_index
		FROM rendered_outputs r
		JOIN video_items i ON i.id = r.item_id
		WHERE i.batch_id = $1 AND r.status = $2
		ORDER BY i.row_index, r.format
	`

	rows, err := db.QueryContext(ctx, query, batchID, models.RenderStatusCompleted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query batch outputs: %w", err)
	}
	defer rows.Close()

	var outputs []models.RenderedOutput
	rowIndexes := make(map[uuid.UUID]int)
	for rows.Next() {
		var out models.RenderedOutput
		var rowIndex int
		err := rows.Scan(
			&out.ID, &out.ItemID, &out.Format, &out.Status, &out.ArtifactRef,
			&out.ErrorMessage, &out.CreatedAt, &out.UpdatedAt, &rowIndex,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan batch output: %w", err)
		}
		outputs = append(outputs, out)
		rowIndexes[out.ItemID] = rowIndex
	}

	return outputs, rowIndexes, rows.Err()
}

func (db *DB) DeleteRenderedOutput(ctx context.Context, itemID uuid.UUID, format string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM rendered_outputs WHERE item_id = $1 AND format = $2`,
		itemID, format,
	)
	return err
}
