package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ecmcloud/ecm/internal/api"
	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/backup"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/config"
	"github.com/ecmcloud/ecm/internal/console"
	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/ledger"
	"github.com/ecmcloud/ecm/internal/logger"
	"github.com/ecmcloud/ecm/internal/notify"
	"github.com/ecmcloud/ecm/internal/plan"
	"github.com/ecmcloud/ecm/internal/reconciler"
	"github.com/ecmcloud/ecm/internal/tenant"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.MasterDatabase)
	if err != nil {
		return fmt.Errorf("opening master database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating master database: %w", err)
	}

	plans := plan.Default()
	if cfg.PlansFile != "" {
		if plans, err = plan.LoadFile(cfg.PlansFile); err != nil {
			return fmt.Errorf("loading plans: %w", err)
		}
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		if secret, err = auth.RandomSecret(); err != nil {
			return err
		}
		log.Warn("JWT_SECRET is not set; using a random secret, sessions will not survive a restart")
	}

	companies := company.NewRepository(db)
	users := auth.NewRepository(db)
	authSvc := auth.NewService(
		users,
		auth.NewSuperAdminRepository(db),
		companies,
		auth.NewTokenIssuer(secret, cfg.TokenTTL),
		cfg.BcryptCost,
		log.Named("auth"),
	)

	generated, err := authSvc.BootstrapSuperAdmin(ctx, cfg.SuperAdminUsername, cfg.SuperAdminPassword)
	if err != nil {
		return err
	}
	if generated != "" && cfg.SuperAdminPassword == "" {
		fmt.Fprintf(os.Stderr, "created super admin %q with password %s\n", cfg.SuperAdminUsername, generated)
	}

	tenants := tenant.NewManager(cfg.DataDir, cfg.BackupDir, log.Named("tenant"))
	defer func() {
		if err := tenants.Close(); err != nil {
			log.Error("closing tenant stores", zap.Error(err))
		}
	}()

	notifier := notify.New(cfg.SMTP, log.Named("notify"))
	ledgerSvc := ledger.NewService(tenants, companies, log.Named("ledger"))
	consoleSvc := console.NewService(db, companies, users, authSvc, tenants, plans, log.Named("console"), console.Options{
		RegistrationEnabled: cfg.EnableSelfRegistration,
		AppURL:              cfg.AppURL,
		Notifier:            notifier,
	})

	router := api.NewRouter(api.RouterDeps{
		Logger:      log,
		DBPinger:    db,
		Version:     cfg.Version,
		Auth:        authSvc,
		Console:     consoleSvc,
		Ledger:      ledgerSvc,
		Tenants:     tenants,
		Plans:       plans,
		CORSOrigins: cfg.CORSAllowedOrigins,
		LoginLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.LoginRatePerSecond,
			Burst:             cfg.LoginRateBurst,
		},
		TrustProxy: cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.SystemBackupSchedule != "" {
		var uploader backup.Uploader
		if cfg.S3.Enabled() {
			uploader = backup.NewS3Uploader(cfg.S3)
		}
		backups := backup.NewService(backup.Options{
			MasterPath:    db.Path(),
			DataDir:       cfg.DataDir,
			BackupDir:     cfg.SystemBackupDir,
			RetentionDays: cfg.SystemBackupRetentionDays,
		}, uploader, notifier, log.Named("backup"))

		scheduler, err := backup.NewScheduler(ctx, cfg.SystemBackupSchedule, backups, tenants.CheckpointAll, log.Named("backup"))
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reconciler.New(companies, tenants, cfg.StorageReconcileInterval, log.Named("reconciler")).Start(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("starting ECM server", zap.Int("port", cfg.Port), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
