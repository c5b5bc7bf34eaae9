package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sellvid/backend/internal/models"
)

// ResolveUser maps an upstream-auth identity to the internal user record,
// creating it on first sight. Auth itself (token verification) happens in the
// gateway in front of this service; we only receive the verified identity.
func (db *DB) ResolveUser(ctx context.Context, externalID, email string) (*models.User, error) {
	query := `
		INSERT INTO users (id, external_id, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO UPDATE SET email = EXCLUDED.email, updated_at = NOW()
		RETURNING id, external_id, email, created_at, updated_at
	`

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, uuid.New(), externalID, email).Scan(
		&user.ID, &user.ExternalID, &user.Email, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return user, nil
}

// UserOwnsBatch verifies batch ownership before any mutation.
func (db *DB) UserOwnsBatch(ctx context.Context, userID, batchID uuid.UUID) (bool, error) {
	var owns bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM batch_jobs WHERE id = $1 AND user_id = $2)`,
		batchID, userID,
	).Scan(&owns)
	if err != nil {
		return false, fmt.Errorf("failed to check batch ownership: %w", err)
	}
	return owns, nil
}

// UserOwnsItem verifies ownership of an item through its batch.
func (db *DB) UserOwnsItem(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	var owns bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM video_items i
			JOIN batch_jobs b ON b.id = i.batch_id
			WHERE i.id = $1 AND b.user_id = $2
		)`,
		itemID, userID,
	).Scan(&owns)
	if err != nil {
		return false, fmt.Errorf("failed to check item ownership: %w", err)
	}
	return owns, nil
}

// UserOwnsScene verifies ownership of a scene through its item's batch.
func (db *DB) UserOwnsScene(ctx context.Context, userID, sceneID uuid.UUID) (bool, error) {
	var owns bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM scenes s
			JOIN video_items i ON i.id = s.item_id
			JOIN batch_jobs b ON b.id = i.batch_id
			WHERE s.id = $1 AND b.user_id = $2
		)`,
		sceneID, userID,
	).Scan(&owns)
	if err != nil {
		return false, fmt.Errorf("failed to check scene ownership: %w", err)
	}
	return owns, nil
}

func (db *DB) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `
		SELECT id, external_id, email, created_at, updated_at
		FROM users
		WHERE external_id = $1
	`

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, externalID).Scan(
		&user.ID, &user.ExternalID, &user.Email, &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
