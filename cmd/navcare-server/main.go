package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/navcare/navcare/internal/config"
	"github.com/navcare/navcare/internal/domain/alert"
	"github.com/navcare/navcare/internal/domain/navigation"
	"github.com/navcare/navcare/internal/domain/patient"
	"github.com/navcare/navcare/internal/platform/db"
	"github.com/navcare/navcare/internal/platform/fanout"
	"github.com/navcare/navcare/internal/platform/middleware"
	"github.com/navcare/navcare/internal/platform/tenant"
)

// DelayAlertAdapter adapts the alert service to the detector's
// navigation.DelayAlerter interface, avoiding circular imports between the
// navigation and alert packages. When a new alert is created it also bumps
// the patient's priority score by the alert severity's contribution.
type DelayAlertAdapter struct {
	alerts   *alert.Service
	patients *patient.Service
	logger   zerolog.Logger
}

func NewDelayAlertAdapter(alerts *alert.Service, patients *patient.Service, logger zerolog.Logger) *DelayAlertAdapter {
	return &DelayAlertAdapter{alerts: alerts, patients: patients, logger: logger}
}

// EnsureDelayAlert implements navigation.DelayAlerter.
func (a *DelayAlertAdapter) EnsureDelayAlert(ctx context.Context, tenantID string, step *navigation.Step, daysOverdue int) (bool, error) {
	candidate := alert.DelayCandidate{
		PatientID:    step.PatientID,
		StepID:       step.ID,
		StepKey:      step.StepKey,
		StepName:     step.StepName,
		JourneyStage: string(step.JourneyStage),
		DaysOverdue:  daysOverdue,
		IsRequired:   step.IsRequired,
	}
	if step.DueDate != nil {
		candidate.DueDate = *step.DueDate
	}

	result, err := a.alerts.EnsureNavigationDelay(ctx, tenantID, candidate)
	if err != nil {
		return false, err
	}
	if result.Suppressed() {
		return false, nil
	}

	delta := alert.PriorityDelta(result.Created.Severity)
	if _, err := a.patients.BumpPriority(ctx, tenantID, step.PatientID, delta); err != nil {
		// The alert exists and was published; a missed bump only skews the
		// worklist ordering.
		a.logger.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("patient_id", step.PatientID.String()).
			Msg("priority bump failed")
	}
	return true, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "navcare-server",
		Short: "Patient navigation alerting server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(scanCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the navigation API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = args[0]
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

			t, err := tenant.NewRegistryPG(pool).Create(ctx, args[0], name)
			if err != nil {
				return err
			}
			fmt.Printf("Created tenant %s (%s)\n", t.ID, t.Name)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Display name for the tenant")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			tenants, err := tenant.NewRegistryPG(pool).List(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-24s %-32s %s\n", "ID", "NAME", "CREATED AT")
			for _, t := range tenants {
				fmt.Printf("%-24s %-32s %s\n", t.ID, t.Name, t.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	})

	return cmd
}

// scanCmd runs a single overdue sweep and prints the result, for cron-style
// deployments that prefer an external scheduler over the in-process ticker.
func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one overdue step sweep across all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

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

			hub := fanout.NewHub(logger)
			thresholds := alert.Thresholds{CriticalDays: cfg.SeverityCritDays, HighDays: cfg.SeverityHighDays}
			alertSvc := alert.NewService(alert.NewRepoPG(pool), hub, thresholds, logger)
			patientSvc := patient.NewService(patient.NewRepoPG(pool), navigation.NewService(navigation.NewRepoPG(pool), logger), logger)
			alerter := NewDelayAlertAdapter(alertSvc, patientSvc, logger)

			detector := navigation.NewDetector(navigation.NewRepoPG(pool), tenant.NewRegistryPG(pool),
				alerter, cfg.ScanInterval, cfg.MaxStepsPerScan, logger)

			result, err := detector.Scan(ctx)
			if err != nil {
				return err
			}
			out, _ := json.Marshal(result)
			fmt.Println(string(out))
			return nil
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(tenant.Middleware(cfg.DefaultTenant))

	// Fan-out hub
	hub := fanout.NewHub(logger)

	// Domain wiring
	thresholds := alert.Thresholds{CriticalDays: cfg.SeverityCritDays, HighDays: cfg.SeverityHighDays}
	alertSvc := alert.NewService(alert.NewRepoPG(pool), hub, thresholds, logger)

	stepRepo := navigation.NewRepoPG(pool)
	navSvc := navigation.NewService(stepRepo, logger)
	patientSvc := patient.NewService(patient.NewRepoPG(pool), navSvc, logger)

	alerter := NewDelayAlertAdapter(alertSvc, patientSvc, logger)
	detector := navigation.NewDetector(stepRepo, tenant.NewRegistryPG(pool), alerter,
		cfg.ScanInterval, cfg.MaxStepsPerScan, logger)

	// Routes
	apiV1 := e.Group("/api/v1")
	alert.NewHandler(alertSvc).RegisterRoutes(apiV1)
	navigation.NewHandler(navSvc, detector).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	fanout.NewHandler(hub, cfg.JWTSecret).RegisterRoutes(e.Group(""))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Overdue detector
	detectorCtx, stopDetector := context.WithCancel(context.Background())
	defer stopDetector()
	detector.Start(detectorCtx)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	detector.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
