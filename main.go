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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	driveService "navidrive/internal/application/drive"
	sessionService "navidrive/internal/application/session"
	shareService "navidrive/internal/application/share"
	"navidrive/internal/delivery/http/handler"
	"navidrive/internal/delivery/http/middleware"
	"navidrive/internal/delivery/http/router"
	"navidrive/internal/domain/corruption"
	"navidrive/internal/infrastructure/blob"
	"navidrive/internal/infrastructure/config"
	"navidrive/internal/infrastructure/database"
	"navidrive/internal/infrastructure/logging"
	"navidrive/internal/infrastructure/repository"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "navidrive",
	Short: "Haunted drive server",
	Long: `navidrive serves a file drive whose listings slowly corrupt as a
session digs deeper. Running it without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the default drive tree",
	Long:  `Creates the default drive tree. Does nothing if the drive already has a root folder.`,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(serveCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is everything both commands need.
type app struct {
	cfg    *config.Config
	db     *database.DB
	drives driveService.Service
	shares shareService.Service
	sess   sessionService.Service
}

func setup(ctx context.Context) (*app, error) {
	// Load configuration
	cfg := config.Load()

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Run migrations
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	blobs, err := blob.New(ctx, blob.Options{
		Backend:   cfg.StorageBackend,
		LocalPath: cfg.StoragePath,
		S3: blob.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	// Initialize repositories
	driveRepo := repository.NewDriveRepository(db)
	shareRepo := repository.NewShareRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Initialize services
	drives := driveService.NewService(driveRepo, blobs, driveService.WithShares(shareRepo))
	return &app{
		cfg:    cfg,
		db:     db,
		drives: drives,
		shares: shareService.NewService(shareRepo, drives),
		sess: sessionService.NewService(sessionRepo, drives, sessionService.Config{
			Expiry:      cfg.SessionExpiry,
			IdleTimeout: cfg.SessionIdleTimeout,
			Timing: corruption.Timing{
				CorruptionInterval: cfg.CorruptionTick,
				GlitchInterval:     cfg.GlitchTick,
				GlitchFlash:        cfg.GlitchFlash,
			},
		}),
	}, nil
}

func (a *app) close() {
	a.db.Close()
	logging.Sync()
}

func runSeed(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.drives.Seed(cmd.Context())
	if err != nil {
		return fmt.Errorf("seed drive: %w", err)
	}
	if res.Skipped {
		fmt.Println("Drive already initialized")
		return nil
	}
	fmt.Printf("Seeded %d folders and %d files\n", res.Folders, res.Files)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.SeedOnStart {
		if _, err := a.drives.Seed(ctx); err != nil {
			return fmt.Errorf("seed drive: %w", err)
		}
	}

	// Setup routes
	handlers := router.Handlers{
		Drive:   handler.NewDriveHandler(a.drives, a.cfg.MaxFileSize),
		Share:   handler.NewShareHandler(a.shares, a.cfg.BaseURL),
		Session: handler.NewSessionHandler(a.sess),
	}
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           router.Setup(handlers, a.sess, middleware.OriginsFromList(a.cfg.FrontendURL)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Println("=================================")
	fmt.Println("       navidrive server")
	fmt.Println("=================================")
	fmt.Printf("Server:    %s\n", a.cfg.BaseURL)
	fmt.Printf("Storage:   %s\n", a.cfg.StorageBackend)
	fmt.Printf("Database:  %s\n", a.cfg.DatabaseDriver)
	fmt.Println("=================================")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.sess.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
