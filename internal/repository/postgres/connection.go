package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"quiver/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Projects   string
	Folders    string
	Cases      string
	Versions   string
	Tags       string
	CaseTags   string
	CaseIssues string
	StepGroups string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Projects:   fmt.Sprintf("%sprojects", prefix),
		Folders:    fmt.Sprintf("%sfolders", prefix),
		Cases:      fmt.Sprintf("%stest_cases", prefix),
		Versions:   fmt.Sprintf("%scase_versions", prefix),
		Tags:       fmt.Sprintf("%stags", prefix),
		CaseTags:   fmt.Sprintf("%scase_tags", prefix),
		CaseIssues: fmt.Sprintf("%scase_issues", prefix),
		StepGroups: fmt.Sprintf("%sshared_step_groups", prefix),
	}
}

// CreateConnectionPool creates a new pgx connection pool.
//
// PgBouncer in transaction pooling mode (port 6543 on hosted Postgres)
// does not support prepared statements; when that port is detected and
// the caller did not set a mode explicitly, QueryExecModeCacheDescribe
// is used: extended protocol (needed for JSONB encoding of Go maps)
// with cached descriptions instead of prepared statements.
//
// Dynamic table prefixes (dev_, test_, prod_) are interpolated into the
// SQL string before it reaches the server, so each environment gets its
// own statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the appropriate query executor for the context.
// If a transaction is present in the context, it returns the
// transaction; otherwise the provided pool. This lets repositories
// automatically participate in transactions when they exist.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
