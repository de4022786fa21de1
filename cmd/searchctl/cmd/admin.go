package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/contentsearch/internal/auth"
	"github.com/utafrali/contentsearch/internal/config"
	"github.com/utafrali/contentsearch/internal/repository/postgres"
	"github.com/utafrali/contentsearch/pkg/database"
	"github.com/utafrali/contentsearch/pkg/logger"
)

func newTokenCmd() *cobra.Command {
	var (
		user   string
		role   string
		secret string
		issuer string
		expiry time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the service secret",
		Example: `  export SEARCHCTL_TOKEN=$(JWT_SECRET=... searchctl token --role admin)
  searchctl token --user editor-7 --role editor --expiry 15m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			tok, err := auth.NewJWTManager(secret, issuer, expiry).GenerateAccessToken(user, role)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "searchctl", "Subject user id")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "Role claim")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", os.Getenv("JWT_ISSUER"), "Issuer claim")
	cmd.Flags().DurationVar(&expiry, "expiry", time.Hour, "Token lifetime")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		Long: `Connects with the same POSTGRES_* environment the service uses and
applies any migrations that have not run yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.NewWithOptions("searchctl", cmd.ErrOrStderr(), logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

			pool, err := database.NewPostgresPool(cmd.Context(), cfg.Postgres, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.RunMigrations(cmd.Context(), pool, postgres.Migrations(), log); err != nil {
				return err
			}
			log.Info("migrations applied", slog.String("database", cfg.Postgres.DBName))
			return nil
		},
	}
}
