package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"scopeboard/internal/config"
	"scopeboard/internal/repository"
	"scopeboard/internal/routes"
	"scopeboard/internal/services"
)

func main() {
	app := &cli.App{
		Name:  "scopeboard",
		Usage: "dashboard scope, variable and time-range service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file (yaml, toml or json)",
				EnvVars: []string{"SCOPEBOARD_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			tokenCommand(os.Stdout),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cCtx *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cCtx.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen address, overrides the config",
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, logger, err := loadConfig(cCtx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if listen := cCtx.String("listen"); listen != "" {
				cfg.Listen = listen
			}
			return serve(cCtx.Context, cfg, logger)
		},
	}
}

// tokenCommand issues an editor token offline, for bootstrapping
func tokenCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "print an editor token signed with the configured secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "editor",
				Usage:    "editor name embedded in the token",
				Required: true,
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, logger, err := loadConfig(cCtx)
			if err != nil {
				return err
			}
			auth, err := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.SecretFile, cfg.Auth.TokenExpiry, logger)
			if err != nil {
				return err
			}
			token, expiresAt, err := auth.GenerateToken(cCtx.String("editor"))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func openRepo(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.DashboardRepo, func(), error) {
	if cfg.Storage.Driver != "mongo" {
		logger.Warn("using in-memory storage, dashboards are lost on restart")
		return repository.NewMemoryDashboardRepo(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Storage.MongoURI))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	logger.Info("connected to mongo", zap.String("database", cfg.Storage.Database))
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect", zap.Error(err))
		}
	}
	return repository.NewDashboardRepo(client, cfg.Storage.Database, cfg.Storage.Collection), closeFn, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepo(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	auth, err := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.SecretFile, cfg.Auth.TokenExpiry, logger)
	if err != nil {
		return err
	}

	hub := services.NewRefreshHub(logger.Named("hub"))
	defer hub.Stop()

	cache := services.NewWorkspaceCache(repo, hub, cfg.WorkspaceTTL, logger.Named("workspace"))
	cache.StartEvictor(ctx, time.Minute)

	gin.SetMode(gin.ReleaseMode)
	router := routes.NewRouter(cfg, cache, hub, auth, logger)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
