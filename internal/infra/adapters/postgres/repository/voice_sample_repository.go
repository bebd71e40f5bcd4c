package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// VoiceSampleRepository stores reusable voice samples so returning users can
// join by reference instead of re-uploading their timbre clip.
type VoiceSampleRepository interface {
	Save(ctx context.Context, userID string, data []byte) (string, error)
	Sample(ctx context.Context, id string) ([]byte, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type voiceSampleRepo struct {
	db *sqlx.DB
}

func NewVoiceSampleRepo(db *sqlx.DB) VoiceSampleRepository {
	return &voiceSampleRepo{db: db}
}

func (r *voiceSampleRepo) Save(ctx context.Context, userID string, data []byte) (string, error) {
	query := "INSERT INTO voice_samples (user_id, data) VALUES ($1, $2) RETURNING id"

	var id string
	if err := r.db.GetContext(ctx, &id, query, userID, data); err != nil {
		return "", fmt.Errorf("save voice sample: %w", err)
	}

	return id, nil
}

func (r *voiceSampleRepo) Sample(ctx context.Context, id string) ([]byte, error) {
	query := "SELECT data FROM voice_samples WHERE id = $1"

	var data []byte
	if err := r.db.GetContext(ctx, &data, query, id); err != nil {
		return nil, fmt.Errorf("get voice sample: %w", err)
	}

	return data, nil
}

func (r *voiceSampleRepo) DeleteByUser(ctx context.Context, userID string) error {
	query := "DELETE FROM voice_samples WHERE user_id = $1"

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete voice samples: %w", err)
	}

	return nil
}
