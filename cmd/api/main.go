package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shiwasmii/CunaPay.Api/internal/auth"
	"github.com/Shiwasmii/CunaPay.Api/internal/config"
	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
	"github.com/Shiwasmii/CunaPay.Api/internal/events"
	"github.com/Shiwasmii/CunaPay.Api/internal/identity"
	"github.com/Shiwasmii/CunaPay.Api/internal/infra"
	"github.com/Shiwasmii/CunaPay.Api/internal/keyvault"
	"github.com/Shiwasmii/CunaPay.Api/internal/logging"
	"github.com/Shiwasmii/CunaPay.Api/internal/notification"
	"github.com/Shiwasmii/CunaPay.Api/internal/pricing"
	"github.com/Shiwasmii/CunaPay.Api/internal/purchase"
	"github.com/Shiwasmii/CunaPay.Api/internal/routes"
	"github.com/Shiwasmii/CunaPay.Api/internal/server"
	"github.com/Shiwasmii/CunaPay.Api/internal/staking"
	"github.com/Shiwasmii/CunaPay.Api/internal/tron"
	"github.com/Shiwasmii/CunaPay.Api/internal/wallet"
	"github.com/Shiwasmii/CunaPay.Api/internal/watcher"
	"github.com/Shiwasmii/CunaPay.Api/internal/withdrawal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	store := custody.NewPostgresStore(db)
	idRepo := identity.NewPostgresRepository(db)
	purchaseRepo := purchase.NewPostgresRepository(db)
	withdrawalRepo := withdrawal.NewPostgresRepository(db)
	for name, migrate := range map[string]func(context.Context) error{
		"custody":     store.Migrate,
		"identity":    idRepo.Migrate,
		"purchases":   purchaseRepo.Migrate,
		"withdrawals": withdrawalRepo.Migrate,
	} {
		if err := migrate(ctx); err != nil {
			logger.Error("migrate schema", "schema", name, "error", err)
			os.Exit(1)
		}
	}

	vault, err := keyvault.New(cfg.MasterKeyHex)
	if err != nil {
		logger.Error("open key vault", "error", err)
		os.Exit(1)
	}

	gateway := tron.NewClient(cfg.TronBridgeURL, cfg.TronAPIKey, logger)
	bus := events.NewBus()

	idem := wallet.NewIdempotencyStore(cache, cfg.IdempotencyTTL, logger)
	walletSvc := wallet.NewService(store, gateway, vault, bus, idem, logger)
	cachedBalances := wallet.NewCachedBalances(walletSvc, cache, cfg.BalanceTTL, logger)

	identitySvc := identity.NewService(idRepo, logger)
	admin, err := identitySvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Error("seed operator account", "error", err)
		os.Exit(1)
	}
	treasury := custody.NewTreasuryResolver(store, walletSvc, vault, admin.ID)

	authSvc := auth.NewService(auth.Config{
		Secret:        cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}, idRepo)

	oracle := pricing.NewBinanceP2P(cfg.PriceAPIURL, "USDT", cfg.PriceFiat, logger)
	quoter := pricing.NewQuoter(oracle, pricing.DefaultQuoteConfig(), logger)

	stakingCfg := staking.DefaultConfig()
	stakingCfg.DailyRateBp = cfg.StakeDailyRateBp
	stakingSvc := staking.NewService(store, walletSvc, treasury, bus, stakingCfg, logger)

	purchaseSvc := purchase.NewService(purchaseRepo, store, quoter, walletSvc, treasury, purchase.DefaultConfig(), logger)
	withdrawalSvc := withdrawal.NewService(withdrawalRepo, store, quoter, walletSvc, treasury, withdrawal.DefaultConfig(), logger)

	notification.AttachTo(bus, notification.NewLoggerNotifier(logger), logger)

	watchCfg := watcher.DefaultConfig()
	watchCfg.Interval = cfg.WatchInterval
	watchCfg.BatchSize = cfg.WatchBatch
	confirmations := watcher.New(store, gateway, bus, watchCfg, logger)
	if err := confirmations.Start(); err != nil {
		logger.Error("start confirmation watcher", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := confirmations.Stop(); err != nil {
			logger.Warn("stop confirmation watcher", "error", err)
		}
	}()

	srv, err := server.New(routes.Deps{
		Cfg:    cfg,
		DB:     db,
		Cache:  cache,
		Logger: logger,

		Tokens:      authSvc,
		Auth:        auth.NewHandler(identitySvc, authSvc, walletSvc),
		Profile:     identity.NewHandler(identitySvc),
		Wallet:      wallet.NewHandler(walletSvc, cachedBalances, cachedBalances),
		Staking:     staking.NewHandler(stakingSvc),
		Purchases:   purchase.NewHandler(purchaseSvc),
		Withdrawals: withdrawal.NewHandler(withdrawalSvc),
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
