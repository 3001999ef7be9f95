package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/justestif/listify/internal/auth"
	"github.com/justestif/listify/internal/catalog"
	"github.com/justestif/listify/internal/config"
	"github.com/justestif/listify/internal/credentials"
	"github.com/justestif/listify/internal/db"
	"github.com/justestif/listify/internal/logging"
	"github.com/justestif/listify/internal/playlists"
	"github.com/justestif/listify/internal/web"
)

// Runner holds the dependencies shared by every command action.
type Runner struct {
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Output io.Writer
}

// NewRunner creates a new Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		serveCommand(r),
		migrateCommand(r),
		rollbackCommand(r),
		configCommand(r),
	}
}

// setup loads the config named by --config and builds the logger it describes.
func (r *Runner) setup(cmd *cli.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// Serve opens the store and runs the API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := r.setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if cmd.Bool("migrate") {
		logger.Info("running migrations")
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	tokens, err := credentials.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	services := web.Services{
		Auth:      auth.NewService(store, credentials.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, logger),
		Playlists: playlists.NewService(store, logger),
	}
	if cfg.Spotify.Enabled() {
		client, err := catalog.New(ctx, catalog.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		})
		if err != nil {
			return fmt.Errorf("creating catalog client: %w", err)
		}
		services.Catalog = client
		logger.Info("catalog search enabled")
	}

	server := web.NewServer(web.ServerConfig{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Origins(),
		RateLimit: web.RateLimit{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		Logger: logger,
	}, services)

	logger.Info("listify starting", "env", cfg.Env, "driver", cfg.Database.Driver, "addr", cfg.Server.Addr())
	return server.Run()
}

// Migrate applies pending migrations.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := r.setup(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied", "driver", cfg.Database.Driver)
	return nil
}

// Rollback reverts the most recent migration on relational stores.
func (r *Runner) Rollback(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := r.setup(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rb, ok := store.(db.Rollbacker)
	if !ok {
		return fmt.Errorf("driver %q has no migrations to roll back", cfg.Database.Driver)
	}
	if err := rb.Rollback(ctx); err != nil {
		return fmt.Errorf("rolling back: %w", err)
	}
	logger.Info("rolled back latest migration", "driver", cfg.Database.Driver)
	return nil
}

// ConfigInit writes the example config to --path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := config.CreateConfigFile(path); err != nil {
		return err
	}
	fmt.Fprintf(r.output, "wrote %s\n", path)
	return nil
}
