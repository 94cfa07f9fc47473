package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
)

// PostgresSharedStepRepository implements the SharedStepRepository
// interface. Step lists are a JSONB column; groups are small and read
// whole.
type PostgresSharedStepRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSharedStepRepository creates a new shared step group repository
func NewSharedStepRepository(config *RepositoryConfig) repositories.SharedStepRepository {
	return &PostgresSharedStepRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new group
func (r *PostgresSharedStepRepository) Create(ctx context.Context, group *models.SharedStepGroup) error {
	steps, err := json.Marshal(group.Steps)
	if err != nil {
		return fmt.Errorf("encode group steps: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, name, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.tables.StepGroups)

	executor := GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		group.ID,
		group.ProjectID,
		group.Name,
		steps,
		group.CreatedAt,
		group.UpdatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("shared step group '%s' already exists", group.Name),
				ResourceType: "shared_step_group",
			}
		}
		return fmt.Errorf("create shared step group: %w", err)
	}

	return nil
}

// GetByID retrieves an active group by ID
func (r *PostgresSharedStepRepository) GetByID(ctx context.Context, id, projectID string) (*models.SharedStepGroup, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, name, steps, created_at, updated_at
		FROM %s
		WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
	`, r.tables.StepGroups)

	executor := GetExecutor(ctx, r.pool)
	group, err := scanGroup(executor.QueryRow(ctx, query, id, projectID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("shared step group %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get shared step group: %w", err)
	}

	return group, nil
}

// Update persists name and step list changes
func (r *PostgresSharedStepRepository) Update(ctx context.Context, group *models.SharedStepGroup) error {
	steps, err := json.Marshal(group.Steps)
	if err != nil {
		return fmt.Errorf("encode group steps: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, steps = $2, updated_at = $3
		WHERE id = $4 AND project_id = $5 AND deleted_at IS NULL
	`, r.tables.StepGroups)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, group.Name, steps, group.UpdatedAt, group.ID, group.ProjectID)
	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("shared step group '%s' already exists", group.Name),
				ResourceType: "shared_step_group",
			}
		}
		return fmt.Errorf("update shared step group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shared step group %s: %w", group.ID, domain.ErrNotFound)
	}

	return nil
}

// SoftDelete marks the group deleted
func (r *PostgresSharedStepRepository) SoftDelete(ctx context.Context, id, projectID string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND project_id = $3 AND deleted_at IS NULL
	`, r.tables.StepGroups)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, at, id, projectID)
	if err != nil {
		return fmt.Errorf("soft delete shared step group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shared step group %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListByProject lists active groups in a project ordered by name
func (r *PostgresSharedStepRepository) ListByProject(ctx context.Context, projectID string) ([]models.SharedStepGroup, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, name, steps, created_at, updated_at
		FROM %s
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY LOWER(name) ASC
	`, r.tables.StepGroups)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list shared step groups: %w", err)
	}
	defer rows.Close()

	var groups []models.SharedStepGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shared step group: %w", err)
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shared step groups: %w", err)
	}

	return groups, nil
}

func scanGroup(row pgx.Row) (*models.SharedStepGroup, error) {
	var group models.SharedStepGroup
	var steps []byte
	err := row.Scan(
		&group.ID,
		&group.ProjectID,
		&group.Name,
		&steps,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &group.Steps); err != nil {
			return nil, fmt.Errorf("decode group steps: %w", err)
		}
	}

	return &group, nil
}
