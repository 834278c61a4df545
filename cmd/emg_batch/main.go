// Command emg_batch analyzes every session bundle in a directory, one worker
// per session. Sessions are independent pure computations, so workers share
// nothing but the analytics cache and the scoring-config store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ggustin93/emg-c3d-analyzer-sub015/pipeline"
	"github.com/ggustin93/emg-c3d-analyzer-sub015/scoring"
)

type config struct {
	InputDir        string `mapstructure:"EMG_INPUT_DIR"`
	OutDir          string `mapstructure:"EMG_OUT_DIR"`
	Format          string `mapstructure:"EMG_FORMAT"`
	Workers         int    `mapstructure:"EMG_WORKERS"`
	CacheTTLMinutes int    `mapstructure:"EMG_CACHE_TTL_MINUTES"`
	RedisAddr       string `mapstructure:"EMG_REDIS_ADDR"`
	RedisPassword   string `mapstructure:"EMG_REDIS_PASSWORD"`
	Production      bool   `mapstructure:"EMG_PRODUCTION"`
}

func loadConfig() config {
	viper.AutomaticEnv()
	viper.SetDefault("EMG_INPUT_DIR", "./sessions")
	viper.SetDefault("EMG_OUT_DIR", "./out")
	viper.SetDefault("EMG_FORMAT", "parquet")
	viper.SetDefault("EMG_WORKERS", 4)
	viper.SetDefault("EMG_CACHE_TTL_MINUTES", 60)

	var cfg config
	_ = viper.Unmarshal(&cfg)
	return cfg
}

func main() {
	cfg := loadConfig()

	logger, err := buildLogger(cfg.Production)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	resolver, err := buildResolver(cfg, logger)
	if err != nil {
		logger.Fatal("configuration store unavailable", zap.Error(err))
	}

	entries, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		logger.Fatal("read input directory", zap.String("dir", cfg.InputDir), zap.Error(err))
	}

	cache := pipeline.NewCache(time.Duration(cfg.CacheTTLMinutes)*time.Minute, 10*time.Minute)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(cfg.Workers)

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		processed++
		path := filepath.Join(cfg.InputDir, entry.Name())
		outDir := filepath.Join(cfg.OutDir, strings.TrimSuffix(entry.Name(), ".json"))

		g.Go(func() error {
			return runSession(ctx, path, outDir, cfg, resolver, cache, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("batch failed", zap.Error(err))
	}
	logger.Info("batch complete", zap.Int("sessions", processed))
}

func runSession(ctx context.Context, path, outDir string, cfg config, resolver *scoring.Resolver, cache *pipeline.Cache, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var in pipeline.SessionInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	result, err := pipeline.Run(ctx, in, pipeline.Options{
		OutDir:          outDir,
		Format:          cfg.Format,
		Overwrite:       true,
		IncludeEnvelope: true,
		Resolver:        resolver,
		Cache:           cache,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}

	fields := []zap.Field{
		zap.String("session_id", result.SessionID),
		zap.Bool("gate_passed", result.Score.Compliance.Passed),
	}
	if result.Score.Performance != nil {
		fields = append(fields, zap.Float64("overall_score", result.Score.Performance.OverallScore))
	}
	logger.Info("session analyzed", fields...)
	return nil
}

func buildLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// buildResolver wires the redis-backed store when an address is configured,
// falling back to an in-memory store seeded with the global default.
func buildResolver(cfg config, logger *zap.Logger) (*scoring.Resolver, error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		store := scoring.NewRedisStore(client)
		if _, err := store.ByName(context.Background(), scoring.DefaultConfigName); err != nil {
			if err := store.PutConfig(context.Background(), scoring.Default()); err != nil {
				return nil, fmt.Errorf("seed default configuration: %w", err)
			}
		}
		logger.Info("using redis scoring-config store", zap.String("addr", cfg.RedisAddr))
		return scoring.NewResolver(store), nil
	}

	store := scoring.NewMemoryStore()
	if err := store.PutConfig(scoring.Default()); err != nil {
		return nil, err
	}
	logger.Info("using in-memory scoring-config store")
	return scoring.NewResolver(store), nil
}
