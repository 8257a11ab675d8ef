package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/surveyhos/surveyhos/internal/config"
	"github.com/surveyhos/surveyhos/internal/domain/response"
	"github.com/surveyhos/surveyhos/internal/domain/staff"
	"github.com/surveyhos/surveyhos/internal/platform/db"
	"github.com/surveyhos/surveyhos/internal/platform/export"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "survey-server",
		Short: "Hospital patient satisfaction survey server",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tenantCmd())
	root.AddCommand(exportCmd())
	return root
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the survey API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.DateTime)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is not supported by the built-in runner.")
			fmt.Println("Responses are history; restore the tenant schema from a backup instead.")
			return nil
		},
	})

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage hospital tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export submitted answers for a date range to a file or the S3 archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := exportOptionsFrom(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			from, to, err := exportRange(opts.from, opts.to, loc, time.Now())
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc, err := newServices(cfg, pool, newLogger(cfg.Env))
			if err != nil {
				return err
			}
			tenant := opts.tenant
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			var table export.Table
			err = db.WithConn(ctx, pool, tenant, func(ctx context.Context) error {
				var err error
				table, err = svc.responses.ExportTable(ctx, &staff.Actor{Username: "cli", IsAdmin: true}, from, to)
				return err
			})
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.Write(&buf, opts.format, table); err != nil {
				return err
			}
			name := opts.format.FileName(from, to.AddDate(0, 0, -1))

			if opts.s3 {
				if cfg.ExportS3Bucket == "" {
					return fmt.Errorf("EXPORT_S3_BUCKET is not set")
				}
				store, err := export.NewS3Store(ctx, cfg.ExportS3Bucket, cfg.ExportS3Prefix)
				if err != nil {
					return err
				}
				location, err := store.Put(ctx, name, opts.format.ContentType(), buf.Bytes())
				if err != nil {
					return err
				}
				fmt.Printf("Exported %d row(s) to %s\n", len(table.Rows), location)
				return nil
			}

			path := filepath.Join(opts.out, name)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Printf("Exported %d row(s) to %s\n", len(table.Rows), path)
			return nil
		},
	}
	cmd.Flags().String("from", "", "First day (YYYY-MM-DD), default this Monday")
	cmd.Flags().String("to", "", "Last day inclusive (YYYY-MM-DD), default this Sunday")
	cmd.Flags().String("format", "csv", "csv or xlsx")
	cmd.Flags().String("out", ".", "Output directory")
	cmd.Flags().String("tenant", "", "Tenant identifier, default DEFAULT_TENANT")
	cmd.Flags().Bool("s3", false, "Upload to the S3 export archive instead of writing a file")
	return cmd
}

type exportOptions struct {
	from, to string
	format   export.Format
	out      string
	tenant   string
	s3       bool
}

func exportOptionsFrom(cmd *cobra.Command) (exportOptions, error) {
	var opts exportOptions
	opts.from, _ = cmd.Flags().GetString("from")
	opts.to, _ = cmd.Flags().GetString("to")
	opts.out, _ = cmd.Flags().GetString("out")
	opts.tenant, _ = cmd.Flags().GetString("tenant")
	opts.s3, _ = cmd.Flags().GetBool("s3")
	format, _ := cmd.Flags().GetString("format")
	f, err := export.ParseFormat(format)
	if err != nil {
		return opts, err
	}
	opts.format = f
	return opts, nil
}

// exportRange turns inclusive day strings into a [from, to) window. Missing
// bounds default to the week containing now.
func exportRange(fromStr, toStr string, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	from, to := response.WeekOf(now.In(loc))
	if fromStr != "" {
		d, err := response.ParseDay(fromStr, loc)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
		from = d
	}
	if toStr != "" {
		d, err := response.ParseDay(toStr, loc)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return from, to, fmt.Errorf("--from must not be after --to")
	}
	return from, to, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a, err := newApp(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble server")
	}
	a.pipeline.Start(ctx)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.shutdown(shutdownCtx, logger)
	logger.Info().Msg("server stopped")
	return nil
}
