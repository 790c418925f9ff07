package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/doccache/store"
	gormstore "github.com/unkn0wn-root/doccache/store/gorm"
	mongostore "github.com/unkn0wn-root/doccache/store/mongo"
	redisstore "github.com/unkn0wn-root/doccache/store/redis"
)

// openStore picks the one backend selected by flags.
func openStore(ctx context.Context, cctx *cli.Context, logger *zap.Logger) (store.Store, error) {
	var selected []string
	for _, f := range []string{"mongo-uri", "redis-url", "db-url"} {
		if cctx.String(f) != "" {
			selected = append(selected, "--"+f)
		}
	}
	switch len(selected) {
	case 0:
		return nil, cli.Exit("select a backend with --mongo-uri, --redis-url or --db-url", 2)
	case 1:
	default:
		return nil, cli.Exit(fmt.Sprintf("backends are mutually exclusive, got %s", strings.Join(selected, ", ")), 2)
	}

	switch {
	case cctx.String("mongo-uri") != "":
		logger.Debug("opening mongo store", zap.String("database", cctx.String("mongo-database")))
		return mongostore.Open(ctx, mongostore.Config{
			URI:        cctx.String("mongo-uri"),
			Database:   cctx.String("mongo-database"),
			Collection: cctx.String("mongo-collection"),
		})
	case cctx.String("redis-url") != "":
		logger.Debug("opening redis store", zap.String("namespace", cctx.String("redis-namespace")))
		return redisstore.Open(ctx, cctx.String("redis-url"), cctx.String("redis-namespace"))
	default:
		cfg, err := gormstore.ParseURL(cctx.String("db-url"))
		if err != nil {
			return nil, err
		}
		cfg.Table = cctx.String("db-table")
		cfg.Logger = sqlLogger(cctx.String("log-level"))
		logger.Debug("opening sql store", zap.String("dialect", cfg.Dialect), zap.String("table", cfg.Table))
		return gormstore.Open(ctx, cfg)
	}
}

// sqlLogger feeds GORM's SQL log. It stays at warn unless debug logging is
// on, so every statement is not echoed.
func sqlLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	if strings.EqualFold(level, "debug") {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
