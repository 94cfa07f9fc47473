package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
)

// PostgresTagRepository implements the TagRepository interface
type PostgresTagRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewTagRepository creates a new tag repository
func NewTagRepository(config *RepositoryConfig) repositories.TagRepository {
	return &PostgresTagRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new tag
func (r *PostgresTagRepository) Create(ctx context.Context, tag *models.Tag) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, r.tables.Tags)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query, tag.ID, tag.Name, tag.CreatedAt, tag.UpdatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("tag '%s' already exists", tag.Name),
				ResourceType: "tag",
			}
		}
		return fmt.Errorf("create tag: %w", err)
	}

	return nil
}

// GetByID retrieves an active tag by ID
func (r *PostgresTagRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	query := fmt.Sprintf(`
		SELECT id, name, created_at, updated_at, deleted_at
		FROM %s
		WHERE id = $1 AND deleted_at IS NULL
	`, r.tables.Tags)

	var tag models.Tag
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&tag.ID,
		&tag.Name,
		&tag.CreatedAt,
		&tag.UpdatedAt,
		&tag.DeletedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("tag %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}

	return &tag, nil
}

// FindByName retrieves a tag by case-insensitive name, including
// soft-deleted rows. Active rows win over deleted ones when both exist.
func (r *PostgresTagRepository) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	query := fmt.Sprintf(`
		SELECT id, name, created_at, updated_at, deleted_at
		FROM %s
		WHERE LOWER(name) = LOWER($1)
		ORDER BY (deleted_at IS NULL) DESC, updated_at DESC
		LIMIT 1
	`, r.tables.Tags)

	var tag models.Tag
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, name).Scan(
		&tag.ID,
		&tag.Name,
		&tag.CreatedAt,
		&tag.UpdatedAt,
		&tag.DeletedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find tag by name: %w", err)
	}

	return &tag, nil
}

// Update persists name and deletion state changes
func (r *PostgresTagRepository) Update(ctx context.Context, tag *models.Tag) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, updated_at = $2, deleted_at = $3
		WHERE id = $4
	`, r.tables.Tags)

	executor := GetExecutor(ctx, r.pool)
	cmdTag, err := executor.Exec(ctx, query, tag.Name, tag.UpdatedAt, tag.DeletedAt, tag.ID)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("tag '%s' already exists", tag.Name),
				ResourceType: "tag",
			}
		}
		return fmt.Errorf("update tag: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("tag %s: %w", tag.ID, domain.ErrNotFound)
	}

	return nil
}

// ListActive lists all active tags ordered by name
func (r *PostgresTagRepository) ListActive(ctx context.Context) ([]models.Tag, error) {
	query := fmt.Sprintf(`
		SELECT id, name, created_at, updated_at, deleted_at
		FROM %s
		WHERE deleted_at IS NULL
		ORDER BY LOWER(name) ASC
	`, r.tables.Tags)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt, &tag.UpdatedAt, &tag.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return tags, nil
}
