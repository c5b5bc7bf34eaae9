package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sellvid/backend/internal/models"
)

const sceneColumns = `
	id, item_id, scene_index, prompt, motion_prompt, image_ref,
	animation_status, animation_ref, animation_prompt, provider, seed,
	animation_history, created_at, updated_at
`

func scanScene(row interface{ Scan(...interface{}) error }, scene *models.Scene) error {
	return row.Scan(
		&scene.ID, &scene.ItemID, &scene.SceneIndex, &scene.Prompt, &scene.MotionPrompt,
		&scene.ImageRef, &scene.AnimationStatus, &scene.AnimationRef, &scene.AnimationPrompt,
		&scene.Provider, &scene.Seed, &scene.History, &scene.CreatedAt, &scene.UpdatedAt,
	)
}

func (db *DB) CreateScene(ctx context.Context, scene *models.Scene) error {
	query := `
		INSERT INTO scenes (
			id, item_id, scene_index, prompt, motion_prompt, image_ref,
			animation_status, animation_history
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		scene.ID, scene.ItemID, scene.SceneIndex, scene.Prompt, scene.MotionPrompt,
		scene.ImageRef, scene.AnimationStatus, scene.History,
	).Scan(&scene.CreatedAt, &scene.UpdatedAt)
}

func (db *DB) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE id = $1`

	scene := &models.Scene{}
	err := scanScene(db.QueryRowContext(ctx, query, id), scene)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scene not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	return scene, nil
}

// GetItemScenes returns an item's scenes in scene order.
func (db *DB) GetItemScenes(ctx context.Context, itemID uuid.UUID) ([]models.Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE item_id = $1 ORDER BY scene_index`

	rows, err := db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []models.Scene
	for rows.Next() {
		var scene models.Scene
		if err := scanScene(rows, &scene); err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, scene)
	}

	return scenes, rows.Err()
}

// UpdateSceneContent replaces a scene's generation prompt and still image.
// Animation fields are untouched — an existing animation stays current until
// explicitly regenerated.
func (db *DB) UpdateSceneContent(ctx context.Context, id uuid.UUID, prompt, motionPrompt string, imageRef string) error {
	query := `
		UPDATE scenes
		SET prompt = $1, motion_prompt = $2, image_ref = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, prompt, motionPrompt, imageRef, id)
	return err
}

func (db *DB) UpdateSceneAnimationStatus(ctx context.Context, id uuid.UUID, status models.AnimationStatus) error {
	query := `UPDATE scenes SET animation_status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

// SetSceneAnimation installs a new current animation and the updated history
// in one statement, scoped to exactly one scene row.
func (db *DB) SetSceneAnimation(ctx context.Context, id uuid.UUID, ref, prompt, provider string, seed int64, history models.AnimationHistory) error {
	query := `
		UPDATE scenes
		SET animation_status = $1, animation_ref = $2, animation_prompt = $3,
		    provider = $4, seed = $5, animation_history = $6, updated_at = NOW()
		WHERE id = $7
	`
	_, err := db.ExecContext(ctx, query,
		models.AnimationStatusCompleted, ref, prompt, provider, seed, history, id,
	)
	return err
}

func (db *DB) UpdateSceneAnimationError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	// The failure reason rides on the owning item; the scene just flips status.
	query := `UPDATE scenes SET animation_status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, models.AnimationStatusFailed, id)
	if err != nil {
		return fmt.Errorf("failed to mark scene %s failed (%s): %w", id, errorMessage, err)
	}
	return nil
}

// AreAllScenesAnimated reports whether every scene of the item has a completed
// animation, the precondition for rendering.
func (db *DB) AreAllScenesAnimated(ctx context.Context, itemID uuid.UUID) (bool, error) {
	query := `
		SELECT COUNT(*) = 0
		FROM scenes
		WHERE item_id = $1 AND animation_status != $2
	`

	var done bool
	err := db.QueryRowContext(ctx, query, itemID, models.AnimationStatusCompleted).Scan(&done)
	return done, err
}
