package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"quiver/internal/config"
	"quiver/internal/database/migrations"
	"quiver/internal/repository/postgres"
	"quiver/internal/seed"
	"quiver/internal/service"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment. Commands that touch the
// database require DATABASE_URL.
func loadConfig(requireDB bool) (*config.Config, error) {
	_ = godotenv.Load()
	cfg := config.Load()

	if requireDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "quiver",
	Short: "Versioned test case store",
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}

		if err := migrations.Up(cfg.DatabaseURL, cfg.TablePrefix); err != nil {
			return err
		}

		fmt.Printf("Schema up to date (environment: %s, prefix: %s)\n", cfg.Environment, cfg.TablePrefix)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}

		if cfg.Environment == "prod" {
			return fmt.Errorf("refusing to roll back the production schema")
		}

		if err := migrations.Down(cfg.DatabaseURL, cfg.TablePrefix); err != nil {
			return err
		}

		fmt.Printf("Schema rolled back (prefix: %s)\n", cfg.TablePrefix)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}

		version, dirty, err := migrations.Status(cfg.DatabaseURL, cfg.TablePrefix)
		if err != nil {
			return err
		}

		if version == 0 {
			fmt.Println("No migrations applied")
			return nil
		}

		fmt.Printf("Schema version: %d", version)
		if dirty {
			fmt.Print(" (dirty)")
		}
		fmt.Println()
		return nil
	},
}

// seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load fixture data through the service layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		fixturePath, _ := cmd.Flags().GetString("fixture")

		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}

		if cfg.Environment == "prod" {
			return fmt.Errorf("refusing to seed the production environment")
		}

		fixture, err := seed.LoadFixture(fixturePath)
		if err != nil {
			return err
		}

		logger := config.NewLogger(os.Stdout, cfg.Debug)

		ctx := context.Background()
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		}
		projectRepo := postgres.NewProjectRepository(repoConfig)
		folderRepo := postgres.NewFolderRepository(repoConfig)
		caseRepo := postgres.NewCaseRepository(repoConfig)
		versionRepo := postgres.NewVersionRepository(repoConfig)
		tagRepo := postgres.NewTagRepository(repoConfig)
		groupRepo := postgres.NewSharedStepRepository(repoConfig)
		txManager := postgres.NewTransactionManager(pool)

		auth := service.AllowAllAuthorizer{}
		seeder := seed.NewSeeder(
			service.NewProjectService(projectRepo, auth, logger),
			service.NewFolderService(folderRepo, caseRepo, txManager, auth, logger),
			service.NewCaseService(caseRepo, versionRepo, folderRepo, txManager, auth, logger),
			service.NewTagService(tagRepo, caseRepo, auth, logger),
			service.NewSharedStepService(groupRepo, auth, logger),
			logger,
		)

		project, err := seeder.Apply(ctx, fixture)
		if err != nil {
			return err
		}

		fmt.Printf("Seeded project %q (%s)\n", project.Name, project.ID)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	seedCmd.Flags().String("fixture", "", "Path to a YAML fixture (defaults to the embedded fixture)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
