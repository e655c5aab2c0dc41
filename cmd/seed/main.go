// Command seed fills the configured store with demo data.
//
//	go run ./cmd/seed -users 50 -videos 4
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/vidtube/backend/internal/app"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/seed"
	pkgconfig "github.com/vidtube/backend/pkg/config"
	"github.com/vidtube/backend/pkg/logger"
)

func main() {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.Users, "users", opts.Users, "number of users")
	flag.IntVar(&opts.VideosPerUser, "videos", opts.VideosPerUser, "videos per user")
	flag.IntVar(&opts.HistoryPerUser, "history", opts.HistoryPerUser, "watch history entries per user")
	flag.IntVar(&opts.SubscriptionsPer, "subscriptions", opts.SubscriptionsPer, "subscriptions per user")
	flag.Int64Var(&opts.Seed, "seed", 0, "random seed (0 = time based)")
	flag.Parse()

	if err := pkgconfig.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.ServiceName+"-seed", cfg.LogLevel)

	if cfg.StorageDriver == config.StorageMemory {
		log.Error("seeding the memory store is pointless, set STORAGE_DRIVER to mongo or postgres")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close(context.Background()) }()

	if _, err := seed.Run(ctx, store, auth.NewPasswordHasher(cfg.BcryptCost), opts, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		cancel()
		os.Exit(1)
	}
}
