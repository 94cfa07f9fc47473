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

// PostgresCaseRepository implements the CaseRepository interface.
// Tags and issue links live in join tables and are loaded alongside
// every case read; custom field values are a JSONB column.
type PostgresCaseRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
	tm     *TransactionManager
}

// NewCaseRepository creates a new test case repository
func NewCaseRepository(config *RepositoryConfig) repositories.CaseRepository {
	return &PostgresCaseRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
		tm:     NewTransactionManager(config.Pool),
	}
}

const caseColumns = `id, project_id, folder_id, template_id, name, state, estimate, creator_id, automated, current_version, sort_order, fields, created_at, updated_at`

// Create inserts the case together with its version 1 snapshot
func (r *PostgresCaseRepository) Create(ctx context.Context, c *models.TestCase, v1 *models.Version) error {
	return r.tm.ExecTx(ctx, func(txCtx context.Context) error {
		fields, err := json.Marshal(c.Fields)
		if err != nil {
			return fmt.Errorf("encode case fields: %w", err)
		}

		query := fmt.Sprintf(`
			INSERT INTO %s (%s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, r.tables.Cases, caseColumns)

		executor := GetExecutor(txCtx, r.pool)
		_, err = executor.Exec(txCtx, query,
			c.ID,
			c.ProjectID,
			c.FolderID,
			c.TemplateID,
			c.Name,
			c.State,
			c.Estimate,
			c.CreatorID,
			c.Automated,
			c.CurrentVersion,
			c.Order,
			fields,
			c.CreatedAt,
			c.UpdatedAt,
		)
		if err != nil {
			if IsPgForeignKeyError(err) {
				return fmt.Errorf("folder for case '%s': %w", c.Name, domain.ErrNotFound)
			}
			return fmt.Errorf("create case: %w", err)
		}

		if err := r.insertVersion(txCtx, v1); err != nil {
			return err
		}
		if err := r.replaceTags(txCtx, c.ID, c.Tags); err != nil {
			return err
		}
		return r.replaceIssues(txCtx, c.ID, c.Issues)
	})
}

// GetByID retrieves an active case with tags, issues and fields loaded
func (r *PostgresCaseRepository) GetByID(ctx context.Context, id, projectID string) (*models.TestCase, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
	`, caseColumns, r.tables.Cases)

	executor := GetExecutor(ctx, r.pool)
	row := executor.QueryRow(ctx, query, id, projectID)

	c, err := scanCase(row)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get case: %w", err)
	}

	if err := r.loadReferences(ctx, []*models.TestCase{c}); err != nil {
		return nil, err
	}

	return c, nil
}

// Update persists bookkeeping state without touching version rows
func (r *PostgresCaseRepository) Update(ctx context.Context, c *models.TestCase) error {
	return r.tm.ExecTx(ctx, func(txCtx context.Context) error {
		fields, err := json.Marshal(c.Fields)
		if err != nil {
			return fmt.Errorf("encode case fields: %w", err)
		}

		query := fmt.Sprintf(`
			UPDATE %s
			SET folder_id = $1, template_id = $2, name = $3, state = $4, estimate = $5,
			    automated = $6, sort_order = $7, fields = $8, updated_at = $9
			WHERE id = $10 AND project_id = $11 AND deleted_at IS NULL
		`, r.tables.Cases)

		executor := GetExecutor(txCtx, r.pool)
		tag, err := executor.Exec(txCtx, query,
			c.FolderID,
			c.TemplateID,
			c.Name,
			c.State,
			c.Estimate,
			c.Automated,
			c.Order,
			fields,
			c.UpdatedAt,
			c.ID,
			c.ProjectID,
		)
		if err != nil {
			return fmt.Errorf("update case: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("case %s: %w", c.ID, domain.ErrNotFound)
		}

		if err := r.replaceTags(txCtx, c.ID, c.Tags); err != nil {
			return err
		}
		return r.replaceIssues(txCtx, c.ID, c.Issues)
	})
}

// AdvanceVersion appends the version snapshot and moves current_version
// forward in one atomic step. The compare-and-set on current_version is
// what detects concurrent writers.
func (r *PostgresCaseRepository) AdvanceVersion(ctx context.Context, c *models.TestCase, expected int, v *models.Version) error {
	return r.tm.ExecTx(ctx, func(txCtx context.Context) error {
		fields, err := json.Marshal(c.Fields)
		if err != nil {
			return fmt.Errorf("encode case fields: %w", err)
		}

		query := fmt.Sprintf(`
			UPDATE %s
			SET folder_id = $1, template_id = $2, name = $3, state = $4, estimate = $5,
			    automated = $6, current_version = $7, sort_order = $8, fields = $9, updated_at = $10
			WHERE id = $11 AND project_id = $12 AND current_version = $13 AND deleted_at IS NULL
		`, r.tables.Cases)

		executor := GetExecutor(txCtx, r.pool)
		tag, err := executor.Exec(txCtx, query,
			c.FolderID,
			c.TemplateID,
			c.Name,
			c.State,
			c.Estimate,
			c.Automated,
			v.Number,
			c.Order,
			fields,
			c.UpdatedAt,
			c.ID,
			c.ProjectID,
			expected,
		)
		if err != nil {
			return fmt.Errorf("advance case version: %w", err)
		}

		if tag.RowsAffected() == 0 {
			existsQuery := fmt.Sprintf(`
				SELECT current_version FROM %s
				WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
			`, r.tables.Cases)
			var current int
			err := executor.QueryRow(txCtx, existsQuery, c.ID, c.ProjectID).Scan(&current)
			if err != nil {
				if IsPgNoRowsError(err) {
					return fmt.Errorf("case %s: %w", c.ID, domain.ErrNotFound)
				}
				return fmt.Errorf("advance case version: %w", err)
			}
			return &domain.ConcurrentModificationError{
				Message: fmt.Sprintf("case '%s' changed concurrently: expected version %d, found %d", c.Name, expected, current),
			}
		}

		if err := r.insertVersion(txCtx, v); err != nil {
			return err
		}
		if err := r.replaceTags(txCtx, c.ID, c.Tags); err != nil {
			return err
		}
		return r.replaceIssues(txCtx, c.ID, c.Issues)
	})
}

// SoftDelete marks the case deleted, leaving version rows intact
func (r *PostgresCaseRepository) SoftDelete(ctx context.Context, id, projectID string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND project_id = $3 AND deleted_at IS NULL
	`, r.tables.Cases)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, at, id, projectID)
	if err != nil {
		return fmt.Errorf("soft delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// SoftDeleteByFolders marks every active case in the given folders deleted
func (r *PostgresCaseRepository) SoftDeleteByFolders(ctx context.Context, projectID string, folderIDs []string, at time.Time) (int, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $1, updated_at = $1
		WHERE project_id = $2 AND folder_id = ANY($3) AND deleted_at IS NULL
	`, r.tables.Cases)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, at, projectID, folderIDs)
	if err != nil {
		return 0, fmt.Errorf("soft delete cases by folder: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListByFolder lists active cases in a folder ordered by sort key
func (r *PostgresCaseRepository) ListByFolder(ctx context.Context, folderID *string, projectID string) ([]models.TestCase, error) {
	var query string
	var args []interface{}

	if folderID == nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE project_id = $1 AND folder_id IS NULL AND deleted_at IS NULL
			ORDER BY sort_order ASC, created_at ASC
		`, caseColumns, r.tables.Cases)
		args = []interface{}{projectID}
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE project_id = $1 AND folder_id = $2 AND deleted_at IS NULL
			ORDER BY sort_order ASC, created_at ASC
		`, caseColumns, r.tables.Cases)
		args = []interface{}{projectID, *folderID}
	}

	return r.queryCases(ctx, query, args...)
}

// ListByProject lists all active cases in a project
func (r *PostgresCaseRepository) ListByProject(ctx context.Context, projectID string) ([]models.TestCase, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC, created_at ASC
	`, caseColumns, r.tables.Cases)

	return r.queryCases(ctx, query, projectID)
}

func (r *PostgresCaseRepository) queryCases(ctx context.Context, query string, args ...interface{}) ([]models.TestCase, error) {
	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []models.TestCase
	var refs []*models.TestCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}

	for i := range cases {
		refs = append(refs, &cases[i])
	}
	if err := r.loadReferences(ctx, refs); err != nil {
		return nil, err
	}

	return cases, nil
}

// loadReferences fills tags and issue links for the given cases with
// two batched queries against the join tables.
func (r *PostgresCaseRepository) loadReferences(ctx context.Context, cases []*models.TestCase) error {
	if len(cases) == 0 {
		return nil
	}

	byID := make(map[string]*models.TestCase, len(cases))
	ids := make([]string, 0, len(cases))
	for _, c := range cases {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	executor := GetExecutor(ctx, r.pool)

	tagQuery := fmt.Sprintf(`
		SELECT case_id, tag_id FROM %s
		WHERE case_id = ANY($1)
		ORDER BY attached_at ASC
	`, r.tables.CaseTags)

	rows, err := executor.Query(ctx, tagQuery, ids)
	if err != nil {
		return fmt.Errorf("load case tags: %w", err)
	}
	for rows.Next() {
		var caseID, tagID string
		if err := rows.Scan(&caseID, &tagID); err != nil {
			rows.Close()
			return fmt.Errorf("scan case tag: %w", err)
		}
		if c := byID[caseID]; c != nil {
			c.Tags = append(c.Tags, tagID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate case tags: %w", err)
	}

	issueQuery := fmt.Sprintf(`
		SELECT case_id, external_id, tracker_kind, resolved FROM %s
		WHERE case_id = ANY($1)
		ORDER BY linked_at ASC
	`, r.tables.CaseIssues)

	rows, err = executor.Query(ctx, issueQuery, ids)
	if err != nil {
		return fmt.Errorf("load case issues: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var caseID string
		var ref models.IssueRef
		if err := rows.Scan(&caseID, &ref.ExternalID, &ref.TrackerKind, &ref.Resolved); err != nil {
			return fmt.Errorf("scan case issue: %w", err)
		}
		if c := byID[caseID]; c != nil {
			c.Issues = append(c.Issues, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate case issues: %w", err)
	}

	return nil
}

func (r *PostgresCaseRepository) replaceTags(ctx context.Context, caseID string, tagIDs []string) error {
	executor := GetExecutor(ctx, r.pool)

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE case_id = $1`, r.tables.CaseTags)
	if _, err := executor.Exec(ctx, deleteQuery, caseID); err != nil {
		return fmt.Errorf("clear case tags: %w", err)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (case_id, tag_id, attached_at) VALUES ($1, $2, $3)
	`, r.tables.CaseTags)
	now := time.Now()
	for i, tagID := range tagIDs {
		at := now.Add(time.Duration(i) * time.Microsecond)
		if _, err := executor.Exec(ctx, insertQuery, caseID, tagID, at); err != nil {
			if IsPgForeignKeyError(err) {
				return fmt.Errorf("tag %s: %w", tagID, domain.ErrNotFound)
			}
			return fmt.Errorf("attach tag: %w", err)
		}
	}

	return nil
}

func (r *PostgresCaseRepository) replaceIssues(ctx context.Context, caseID string, issues []models.IssueRef) error {
	executor := GetExecutor(ctx, r.pool)

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE case_id = $1`, r.tables.CaseIssues)
	if _, err := executor.Exec(ctx, deleteQuery, caseID); err != nil {
		return fmt.Errorf("clear case issues: %w", err)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (case_id, external_id, tracker_kind, resolved, linked_at) VALUES ($1, $2, $3, $4, $5)
	`, r.tables.CaseIssues)
	now := time.Now()
	for i, ref := range issues {
		at := now.Add(time.Duration(i) * time.Microsecond)
		if _, err := executor.Exec(ctx, insertQuery, caseID, ref.ExternalID, ref.TrackerKind, ref.Resolved, at); err != nil {
			return fmt.Errorf("link issue: %w", err)
		}
	}

	return nil
}

func (r *PostgresCaseRepository) insertVersion(ctx context.Context, v *models.Version) error {
	content, err := json.Marshal(v.Content)
	if err != nil {
		return fmt.Errorf("encode version content: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (case_id, number, content, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, v.CaseID, v.Number, content, v.CreatedAt, v.CreatedBy); err != nil {
		if IsPgDuplicateError(err) {
			return &domain.ConcurrentModificationError{
				Message: fmt.Sprintf("version %d of case %s already exists", v.Number, v.CaseID),
			}
		}
		return fmt.Errorf("insert version: %w", err)
	}

	return nil
}

func scanCase(row pgx.Row) (*models.TestCase, error) {
	var c models.TestCase
	var fields []byte
	err := row.Scan(
		&c.ID,
		&c.ProjectID,
		&c.FolderID,
		&c.TemplateID,
		&c.Name,
		&c.State,
		&c.Estimate,
		&c.CreatorID,
		&c.Automated,
		&c.CurrentVersion,
		&c.Order,
		&fields,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.Fields); err != nil {
			return nil, fmt.Errorf("decode case fields: %w", err)
		}
	}

	return &c, nil
}

// PostgresVersionRepository implements the VersionRepository interface
type PostgresVersionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(config *RepositoryConfig) repositories.VersionRepository {
	return &PostgresVersionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Get retrieves one version by number
func (r *PostgresVersionRepository) Get(ctx context.Context, caseID string, number int) (*models.Version, error) {
	query := fmt.Sprintf(`
		SELECT case_id, number, content, created_at, created_by
		FROM %s
		WHERE case_id = $1 AND number = $2
	`, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	v, err := scanVersion(executor.QueryRow(ctx, query, caseID, number))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("version %d of case %s: %w", number, caseID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get version: %w", err)
	}

	return v, nil
}

// List retrieves all versions of a case, ascending by number
func (r *PostgresVersionRepository) List(ctx context.Context, caseID string) ([]models.Version, error) {
	query := fmt.Sprintf(`
		SELECT case_id, number, content, created_at, created_by
		FROM %s
		WHERE case_id = $1
		ORDER BY number ASC
	`, r.tables.Versions)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}

	return versions, nil
}

func scanVersion(row pgx.Row) (*models.Version, error) {
	var v models.Version
	var content []byte
	if err := row.Scan(&v.CaseID, &v.Number, &content, &v.CreatedAt, &v.CreatedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &v.Content); err != nil {
		return nil, fmt.Errorf("decode version content: %w", err)
	}
	return &v, nil
}
