package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"quiver/internal/domain"
	"quiver/internal/domain/models"
	"quiver/internal/domain/repositories"
)

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, parent_id, name, sort_order, documentation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		folder.ID,
		folder.ProjectID,
		folder.ParentID,
		folder.Name,
		folder.Order,
		folder.Documentation,
		folder.CreatedAt,
		folder.UpdatedAt,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder '%s' already exists in this location", folder.Name),
				ResourceType: "folder",
			}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("parent folder: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves an active folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id, projectID string) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, parent_id, name, sort_order, documentation, created_at, updated_at
		FROM %s
		WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
	`, r.tables.Folders)

	var folder models.Folder
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, projectID).Scan(
		&folder.ID,
		&folder.ProjectID,
		&folder.ParentID,
		&folder.Name,
		&folder.Order,
		&folder.Documentation,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return &folder, nil
}

// Update updates a folder's mutable columns
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, name = $2, sort_order = $3, documentation = $4, updated_at = $5
		WHERE id = $6 AND project_id = $7 AND deleted_at IS NULL
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		folder.ParentID,
		folder.Name,
		folder.Order,
		folder.Documentation,
		folder.UpdatedAt,
		folder.ID,
		folder.ProjectID,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder '%s' already exists in this location", folder.Name),
				ResourceType: "folder",
			}
		}
		return fmt.Errorf("update folder: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrNotFound)
	}

	return nil
}

// SoftDelete marks the given folders deleted
func (r *PostgresFolderRepository) SoftDelete(ctx context.Context, projectID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1, updated_at = $1
		WHERE project_id = $2 AND id = ANY($3) AND deleted_at IS NULL
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, at, projectID, ids); err != nil {
		return fmt.Errorf("soft delete folders: %w", err)
	}

	return nil
}

// LockProjectTree takes a transaction-scoped advisory lock keyed by
// project. Concurrent movers and cascade deleters in the same project
// queue behind it, so cycle checks and subtree collection always see
// committed parent pointers. Released automatically at commit or
// rollback.
func (r *PostgresFolderRepository) LockProjectTree(ctx context.Context, projectID string) error {
	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, projectID); err != nil {
		return fmt.Errorf("lock project tree: %w", err)
	}
	return nil
}

// ListChildren lists active immediate child folders ordered by sort key
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, folderID *string, projectID string) ([]models.Folder, error) {
	var query string
	var args []interface{}

	if folderID == nil {
		query = fmt.Sprintf(`
			SELECT id, project_id, parent_id, name, sort_order, documentation, created_at, updated_at
			FROM %s
			WHERE project_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
			ORDER BY sort_order ASC, created_at ASC
		`, r.tables.Folders)
		args = []interface{}{projectID}
	} else {
		query = fmt.Sprintf(`
			SELECT id, project_id, parent_id, name, sort_order, documentation, created_at, updated_at
			FROM %s
			WHERE project_id = $1 AND parent_id = $2 AND deleted_at IS NULL
			ORDER BY sort_order ASC, created_at ASC
		`, r.tables.Folders)
		args = []interface{}{projectID, *folderID}
	}

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list child folders: %w", err)
	}
	defer rows.Close()

	return scanFolders(rows)
}

// ListByProject retrieves all active folders in a project
func (r *PostgresFolderRepository) ListByProject(ctx context.Context, projectID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, parent_id, name, sort_order, documentation, created_at, updated_at
		FROM %s
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC, created_at ASC
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	return scanFolders(rows)
}

// UpdateOrders rewrites sort keys for a sibling set
func (r *PostgresFolderRepository) UpdateOrders(ctx context.Context, projectID string, orders map[string]float64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET sort_order = $1, updated_at = $2
		WHERE id = $3 AND project_id = $4 AND deleted_at IS NULL
	`, r.tables.Folders)

	now := time.Now()
	executor := GetExecutor(ctx, r.pool)
	for id, order := range orders {
		if _, err := executor.Exec(ctx, query, order, now, id, projectID); err != nil {
			return fmt.Errorf("update folder order: %w", err)
		}
	}

	return nil
}

// GetPath computes the display path for a folder by walking parent
// pointers with a recursive CTE. Nil folderID is the project root.
func (r *PostgresFolderRepository) GetPath(ctx context.Context, folderID *string, projectID string) (string, error) {
	if folderID == nil {
		return "/", nil
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE folder_path AS (
			SELECT id, parent_id, name, 0 as depth
			FROM %s
			WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL

			UNION ALL

			SELECT f.id, f.parent_id, f.name, fp.depth + 1
			FROM %s f
			INNER JOIN folder_path fp ON f.id = fp.parent_id
			WHERE f.deleted_at IS NULL
		)
		SELECT name FROM folder_path ORDER BY depth DESC
	`, r.tables.Folders, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, *folderID, projectID)
	if err != nil {
		return "", fmt.Errorf("get folder path: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scan folder path: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate folder path: %w", err)
	}

	if len(names) == 0 {
		return "", fmt.Errorf("folder %s: %w", *folderID, domain.ErrNotFound)
	}

	return "/" + strings.Join(names, "/"), nil
}

func scanFolders(rows pgx.Rows) ([]models.Folder, error) {
	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		if err := rows.Scan(
			&folder.ID,
			&folder.ProjectID,
			&folder.ParentID,
			&folder.Name,
			&folder.Order,
			&folder.Documentation,
			&folder.CreatedAt,
			&folder.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}
