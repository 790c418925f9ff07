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

	_ "github.com/joho/godotenv/autoload"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/doccache"
	promhook "github.com/unkn0wn-root/doccache/hooks/prom"
	zaplog "github.com/unkn0wn-root/doccache/log/zap"
)

func main() {
	app := cli.App{
		Name:  "doccache",
		Usage: "inspect and maintain a doccache backing store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mongo-uri",
				Usage:   "MongoDB connection string",
				EnvVars: []string{"DOCCACHE_MONGO_URI"},
			},
			&cli.StringFlag{
				Name:    "mongo-database",
				Usage:   "MongoDB database holding the cache collection",
				Value:   "doccache",
				EnvVars: []string{"DOCCACHE_MONGO_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "mongo-collection",
				Usage:   "MongoDB collection holding cache records",
				Value:   "cache",
				EnvVars: []string{"DOCCACHE_MONGO_COLLECTION"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL, e.g. redis://localhost:6379/0",
				EnvVars: []string{"DOCCACHE_REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "redis-namespace",
				Usage:   "key namespace inside Redis",
				Value:   "doccache",
				EnvVars: []string{"DOCCACHE_REDIS_NAMESPACE"},
			},
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "SQL database url (sqlite://path or postgres://...)",
				EnvVars: []string{"DOCCACHE_DB_URL", "DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "db-table",
				Usage:   "SQL table holding cache records",
				Value:   "doccache_entries",
				EnvVars: []string{"DOCCACHE_DB_TABLE"},
			},
			&cli.DurationFlag{
				Name:    "scan-interval",
				Usage:   "minimum time between expired-record sweeps",
				Value:   5 * time.Minute,
				EnvVars: []string{"DOCCACHE_SCAN_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "timeout for a single command",
				Value:   30 * time.Second,
				EnvVars: []string{"DOCCACHE_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"DOCCACHE_LOG_LEVEL", "LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print the value stored under a key",
				ArgsUsage: "<key>",
				Action:    runGet,
			},
			{
				Name:      "set",
				Usage:     "store a value; reads stdin when value is '-'",
				ArgsUsage: "<key> <value|->",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "sliding",
						Usage: "sliding expiration window",
					},
					&cli.DurationFlag{
						Name:  "absolute-in",
						Usage: "absolute expiration relative to now",
					},
					&cli.TimestampFlag{
						Name:   "absolute-at",
						Usage:  "absolute expiration instant (RFC 3339)",
						Layout: time.RFC3339,
					},
				},
				Action: runSet,
			},
			{
				Name:      "remove",
				Usage:     "delete a key",
				ArgsUsage: "<key>",
				Action:    runRemove,
			},
			{
				Name:      "refresh",
				Usage:     "renew a key's sliding window without reading its value",
				ArgsUsage: "<key>",
				Action:    runRefresh,
			},
			{
				Name:  "sweep",
				Usage: "delete expired records now, or keep sweeping with --watch",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "sweep every --scan-interval until interrupted",
					},
					&cli.StringFlag{
						Name:    "metrics-listen",
						Usage:   "listen address for Prometheus metrics in --watch mode",
						Value:   "localhost:9464",
						EnvVars: []string{"DOCCACHE_METRICS_LISTEN"},
					},
				},
				Action: runSweep,
			},
		},
	}
	app.RunAndExitOnError()
}

func newLogger(cctx *cli.Context) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cctx.String("log-level"))
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

// withCache opens the configured backend, builds a cache on it and runs fn.
func withCache(cctx *cli.Context, opts doccache.Options, fn func(ctx context.Context, c doccache.Cache) error) error {
	logger, err := newLogger(cctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	openCtx, openCancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
	st, err := openStore(openCtx, cctx, logger)
	openCancel()
	if err != nil {
		return err
	}

	opts.Store = st
	opts.Logger = zaplog.New(logger)
	opts.ScanInterval = cctx.Duration("scan-interval")
	c, err := doccache.New(opts)
	if err != nil {
		_ = st.Close(context.Background())
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := c.Close(closeCtx); err != nil {
			logger.Warn("closing cache", zap.Error(err))
		}
	}()
	return fn(ctx, c)
}

func keyArg(cctx *cli.Context) (string, error) {
	if cctx.NArg() < 1 {
		return "", cli.Exit("missing <key> argument", 2)
	}
	return cctx.Args().First(), nil
}

func runGet(cctx *cli.Context) error {
	key, err := keyArg(cctx)
	if err != nil {
		return err
	}
	return withCache(cctx, doccache.Options{}, func(ctx context.Context, c doccache.Cache) error {
		ctx, cancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
		defer cancel()
		v, ok, err := c.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return cli.Exit(fmt.Sprintf("key %q not found", key), 1)
		}
		_, err = os.Stdout.Write(v)
		return err
	})
}

func runSet(cctx *cli.Context) error {
	if cctx.NArg() < 2 {
		return cli.Exit("usage: doccache set <key> <value|->", 2)
	}
	key := cctx.Args().Get(0)

	var value []byte
	if raw := cctx.Args().Get(1); raw == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading value from stdin: %w", err)
		}
		value = b
	} else {
		value = []byte(raw)
	}

	var opts doccache.EntryOptions
	if cctx.IsSet("sliding") {
		opts = opts.WithSlidingExpiration(cctx.Duration("sliding"))
	}
	if cctx.IsSet("absolute-in") {
		opts = opts.WithAbsoluteExpirationRelativeToNow(cctx.Duration("absolute-in"))
	}
	if at := cctx.Timestamp("absolute-at"); at != nil {
		opts = opts.WithAbsoluteExpiration(*at)
	}
	return withCache(cctx, doccache.Options{}, func(ctx context.Context, c doccache.Cache) error {
		ctx, cancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
		defer cancel()
		return c.Set(ctx, key, value, opts)
	})
}

func runRemove(cctx *cli.Context) error {
	key, err := keyArg(cctx)
	if err != nil {
		return err
	}
	return withCache(cctx, doccache.Options{}, func(ctx context.Context, c doccache.Cache) error {
		ctx, cancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
		defer cancel()
		return c.Remove(ctx, key)
	})
}

func runRefresh(cctx *cli.Context) error {
	key, err := keyArg(cctx)
	if err != nil {
		return err
	}
	return withCache(cctx, doccache.Options{}, func(ctx context.Context, c doccache.Cache) error {
		ctx, cancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
		defer cancel()
		return c.Refresh(ctx, key)
	})
}

func runSweep(cctx *cli.Context) error {
	if !cctx.Bool("watch") {
		return withCache(cctx, doccache.Options{}, func(ctx context.Context, c doccache.Cache) error {
			ctx, cancel := context.WithTimeout(ctx, cctx.Duration("timeout"))
			defer cancel()
			return c.Sweep(ctx)
		})
	}

	reg := prometheus.NewRegistry()
	opts := doccache.Options{
		Hooks:           promhook.New(reg),
		BackgroundSweep: true,
	}
	return withCache(cctx, opts, func(ctx context.Context, c doccache.Cache) error {
		srv := &http.Server{
			Addr:              cctx.String("metrics-listen"),
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// first pass right away; the ticker takes over after one interval
		if err := c.Sweep(ctx); err != nil {
			return err
		}

		var err error
		select {
		case <-ctx.Done():
		case err = <-errCh:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	})
}
