package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EternisAI/crooked-keys/internal/clients"
	"github.com/EternisAI/crooked-keys/internal/db"
	"github.com/EternisAI/crooked-keys/internal/ippool"
	"github.com/EternisAI/crooked-keys/internal/provisioning"
	"github.com/EternisAI/crooked-keys/internal/qrcode"
	"github.com/EternisAI/crooked-keys/internal/ratelimit"
	"github.com/EternisAI/crooked-keys/internal/serverid"
	"github.com/EternisAI/crooked-keys/internal/wgkey"
)

// initStore opens the configured registry backend. The returned func closes
// whatever the backend holds open.
func initStore(ctx context.Context, cfg Config) (clients.Store, func(), error) {
	switch cfg.Registry.Backend {
	case REGISTRY_BACKEND_POSTGRES:
		if err := db.RunMigrations(ctx, cfg.DB); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		pool, err := db.InitDB(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using PostgreSQL client registry", "schema", cfg.DB.Schema)
		return clients.NewPostgresStore(pool), pool.Close, nil
	default:
		store, err := clients.NewFileStore(cfg.Registry.Path)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using file client registry", "path", cfg.Registry.Path)
		return store, func() {}, nil
	}
}

func newGenerator(cfg KeygenConfig) wgkey.Generator {
	if cfg.Backend == KEYGEN_BACKEND_NATIVE {
		slog.Info("Generating keys in-process")
		return wgkey.NewNativeGenerator()
	}
	slog.Info("Generating keys with external command", "binary", cfg.Binary, "timeout", cfg.Timeout)
	return wgkey.NewCommandGenerator(cfg.Binary, cfg.Timeout)
}

type limiters struct {
	api   *ratelimit.Limiter
	issue *ratelimit.Limiter
}

func newLimiters(cfg RatelimitConfig) limiters {
	return limiters{
		api:   ratelimit.New("api", cfg.Api.Limit, cfg.Api.Window),
		issue: ratelimit.New("issue", cfg.Issue.Limit, cfg.Issue.Window),
	}
}

func (l limiters) startCleanup(ctx context.Context, interval time.Duration) {
	go l.api.StartCleanup(ctx, interval)
	go l.issue.StartCleanup(ctx, interval)
}

func newProvisioningService(cfg Config, store clients.Store, issueLimiter *ratelimit.Limiter) (*provisioning.Service, error) {
	pool, err := ippool.New(cfg.Wireguard.Network, cfg.Wireguard.PoolOffset, cfg.Wireguard.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create address pool: %w", err)
	}

	resolver := serverid.NewResolver(cfg.Wireguard.ServerPublicKeyPath, cfg.Wireguard.ServerConfigPath)
	if _, err := resolver.PublicKey(); err != nil {
		slog.Warn("Server public key is not available, issuance will fail until it is provisioned",
			"key_path", resolver.KeyPath,
			"config_path", resolver.ConfigPath,
			"error", err)
	}

	return provisioning.NewService(
		clients.NewRegistry(store),
		pool,
		newGenerator(cfg.Keygen),
		resolver,
		issueLimiter,
		qrcode.NewPNGEncoder(),
		provisioning.Settings{
			Endpoint:   cfg.Wireguard.Endpoint(),
			AllowedIPs: cfg.Wireguard.PeerAllowedIPs(),
			DNS:        cfg.Wireguard.DNS,
			Keepalive:  cfg.Wireguard.Keepalive,
			AccessNote: cfg.Wireguard.AccessNote,
		},
	), nil
}
