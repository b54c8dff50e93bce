package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigia-social/vigia/api"
	"github.com/vigia-social/vigia/moderation"
	"github.com/vigia-social/vigia/util/cliutil"

	_ "github.com/joho/godotenv/autoload"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
)

var log = slog.Default().With("system", "vigiad")

func main() {
	if err := run(os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "vigiad",
		Usage:   "community incident reporting daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "database connection string",
			Value:   "sqlite://./data/vigia/vigia.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "address to listen on",
			Value:   ":4989",
			EnvVars: []string{"VIGIA_BIND"},
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "HS256 signing secret for access tokens",
			EnvVars: []string{"VIGIA_JWT_SECRET"},
		},
		&cli.StringFlag{
			Name:    "blob-dir",
			Usage:   "directory for uploaded media",
			Value:   "./data/vigia/media",
			EnvVars: []string{"VIGIA_BLOB_DIR"},
		},
		&cli.IntFlag{
			Name:    "moderation-workers",
			Value:   4,
			EnvVars: []string{"VIGIA_MODERATION_WORKERS"},
		},
		&cli.DurationFlag{
			Name:    "moderation-timeout",
			Usage:   "per-item classification timeout; timed-out items are rejected",
			Value:   30 * time.Second,
			EnvVars: []string{"VIGIA_MODERATION_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "classifier-delay",
			Usage:   "artificial latency for the built-in keyword classifier",
			EnvVars: []string{"VIGIA_CLASSIFIER_DELAY"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			EnvVars: []string{"VIGIA_LOG_LEVEL"},
		},
	}

	app.Action = func(cctx *cli.Context) error {
		setupLogging(cctx.String("log-level"))

		secret := cctx.String("jwt-secret")
		if secret == "" {
			return fmt.Errorf("--jwt-secret (VIGIA_JWT_SECRET) is required")
		}

		db, err := cliutil.SetupDatabase(cctx.String("db-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		classifier := moderation.NewKeywordClassifier()
		classifier.Delay = cctx.Duration("classifier-delay")

		srv, err := api.NewServer(db, api.Config{
			JWTSecret:  []byte(secret),
			BlobDir:    cctx.String("blob-dir"),
			Classifier: classifier,
			Moderation: moderation.OrchestratorConfig{
				Workers: cctx.Int("moderation-workers"),
				Timeout: cctx.Duration("moderation-timeout"),
			},
		})
		if err != nil {
			return err
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		errc := make(chan error, 1)
		go func() {
			errc <- srv.RunAPI(cctx.String("bind"))
		}()

		log.Info("vigiad running", "bind", cctx.String("bind"), "version", versioninfo.Short())

		select {
		case sig := <-quit:
			log.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		case err := <-errc:
			return err
		}
	}

	return app.Run(args)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
}
