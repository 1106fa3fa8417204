package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"invoicelens/internal/domain"
	"invoicelens/internal/port"
)

type apiKeyRepo struct {
	db *sqlx.DB
}

// NewAPIKeyRepo creates a new PostgreSQL-backed APIKeyRepository.
func NewAPIKeyRepo(db *sqlx.DB) port.APIKeyRepository {
	return &apiKeyRepo{db: db}
}

func (r *apiKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	key.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, prefix, key_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		key.ID, key.Name, key.Prefix, key.KeyHash, key.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("apiKeyRepo.Create: prefix %s already exists: %w", key.Prefix, err)
		}
		return fmt.Errorf("apiKeyRepo.Create: %w", err)
	}
	return nil
}

func (r *apiKeyRepo) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := r.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE prefix = $1", prefix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("apiKeyRepo.GetByPrefix: %w", err)
	}
	return &key, nil
}

func (r *apiKeyRepo) List(ctx context.Context) ([]domain.APIKey, error) {
	keys := []domain.APIKey{}
	if err := r.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("apiKeyRepo.List: %w", err)
	}
	return keys, nil
}

func (r *apiKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = $1 WHERE id = $2", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.TouchLastUsed: %w", err)
	}
	return nil
}

func (r *apiKeyRepo) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE api_keys SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.Revoke: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
