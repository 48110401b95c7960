package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	"github.com/noah-isme/zyu-enrollment-api/internal/repository"
	"github.com/noah-isme/zyu-enrollment-api/internal/service"
	"github.com/noah-isme/zyu-enrollment-api/migrations"
	"github.com/noah-isme/zyu-enrollment-api/pkg/config"
	"github.com/noah-isme/zyu-enrollment-api/pkg/database"
	"github.com/noah-isme/zyu-enrollment-api/pkg/logger"
)

const commandTimeout = time.Minute

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var createStaffCmd = &cobra.Command{
	Use:   "create-staff",
	Short: "Seed a staff account",
	Long: `Create an ACTIVE staff account. Public registration only creates students,
so this is how the first registrar gets in.`,
	RunE: runCreateStaff,
}

var purgeCodesCmd = &cobra.Command{
	Use:   "purge-codes",
	Short: "Delete expired password reset codes",
	RunE:  runPurgeCodes,
}

var staffFlags struct {
	email    string
	name     string
	password string
}

func init() {
	createStaffCmd.Flags().StringVar(&staffFlags.email, "email", "", "staff email (required)")
	createStaffCmd.Flags().StringVar(&staffFlags.name, "name", "", "display name (required)")
	createStaffCmd.Flags().StringVar(&staffFlags.password, "password", "", "initial password (required)")
	_ = createStaffCmd.MarkFlagRequired("email")
	_ = createStaffCmd.MarkFlagRequired("name")
	_ = createStaffCmd.MarkFlagRequired("password")
}

// withDatabase loads configuration, opens the database and runs fn with both.
func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, db *sqlx.DB, log *zap.Logger, cfg *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, db, log, cfg)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withDatabase(cmd, func(ctx context.Context, db *sqlx.DB, log *zap.Logger, _ *config.Config) error {
		ran, err := migrations.Apply(ctx, db, log)
		if err != nil {
			return err
		}
		if len(ran) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		}
		for _, name := range ran {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
		return nil
	})
}

func runCreateStaff(cmd *cobra.Command, _ []string) error {
	return withDatabase(cmd, func(ctx context.Context, db *sqlx.DB, log *zap.Logger, cfg *config.Config) error {
		auth := service.NewAuthService(
			repository.NewUserRepository(db),
			repository.NewResetCodeRepository(db),
			nil,
			service.NewValidator(),
			nil,
			log,
			service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret},
		)
		res, err := auth.CreateStaff(ctx, models.RegisterRequest{
			Email:    staffFlags.email,
			Name:     staffFlags.name,
			Password: staffFlags.password,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created staff account %s (%s)\n", res.Email, res.ID)
		return nil
	})
}

func runPurgeCodes(cmd *cobra.Command, _ []string) error {
	return withDatabase(cmd, func(ctx context.Context, db *sqlx.DB, _ *zap.Logger, _ *config.Config) error {
		n, err := repository.NewResetCodeRepository(db).DeleteExpired(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired reset codes\n", n)
		return nil
	})
}
