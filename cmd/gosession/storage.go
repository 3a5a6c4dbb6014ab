package main

import (
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func openStorage(cfg config.StorageConfig, logger *slog.Logger) (storage.Storage, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), func() {}, nil

	case config.BackendFile:
		return storage.NewFile(cfg.Dir), func() {}, nil

	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil

	case config.BackendRedis:
		return openRedis(cfg.Redis, logger)

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// openRedis connects to cfg.Addr, or to an in-process miniredis when no
// address is configured.
func openRedis(cfg config.RedisConfig, logger *slog.Logger) (storage.Storage, func(), error) {
	addr := cfg.Addr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("no redis address configured, using in-process miniredis", "addr", addr)
	} else {
		logger.Debug("using redis", "addr", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}
	return storage.NewRedis(client, cfg.Prefix, cfg.TTL), cleanup, nil
}
