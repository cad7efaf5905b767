package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stabledesk/liquidity-router/internal/adapter/cache"
	"github.com/stabledesk/liquidity-router/internal/adapter/pg"
	api "github.com/stabledesk/liquidity-router/internal/api/http"
	"github.com/stabledesk/liquidity-router/internal/config"
	"github.com/stabledesk/liquidity-router/internal/core"
	"github.com/stabledesk/liquidity-router/internal/logging"
	"github.com/stabledesk/liquidity-router/internal/port"
)

func main() {
	log := logging.Setup()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect to postgres", "err", err)
		return
	}
	defer pool.Close()

	repo := pg.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("ensure schema", "err", err)
		return
	}

	var offerCache port.Cache
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		defer redisCache.Close()
		offerCache = redisCache
	}

	registryOpts := []core.RegistryOption{
		core.WithNonceCache(core.NewMemNonceCache(cfg.NonceCacheWindow)),
		core.WithMaxPageSize(cfg.MaxPageSize),
		core.WithRegistryLogger(log),
	}
	ledgerOpts := []core.LedgerOption{core.WithLedgerLogger(log)}
	if offerCache != nil {
		registryOpts = append(registryOpts, core.WithRegistryCache(offerCache))
		ledgerOpts = append(ledgerOpts, core.WithLedgerCache(offerCache))
	}
	registry := core.NewRegistry(repo, registryOpts...)
	ledger := core.NewLedger(repo, ledgerOpts...)

	routerOpts := []core.RouterOption{
		core.WithRankWeights(core.RankWeights{
			Rate:    cfg.RankWeightRate,
			Fee:     cfg.RankWeightFee,
			Latency: cfg.RankWeightLatency,
		}),
		core.WithAllocationPolicy(core.AllocationPolicy{AllowPartialFinalChunk: cfg.AllowPartialFinalChunk}),
		core.WithRouterLogger(log),
	}
	if cfg.AuditKeyHex != "" {
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.AuditKeyHex, "0x"))
		if err != nil {
			log.Error("load audit key", "err", err)
			return
		}
		routerOpts = append(routerOpts, core.WithAuditKey(key))
	}
	router := core.NewRouter(registry, ledger, routerOpts...)

	server := api.NewHTTPServer(registry, ledger, router)
	server.RateLimitInterval = cfg.RateLimitInterval

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Engine(),
	}
	go func() {
		log.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", "err", err)
	}
}
