// Command tracker runs the on-chain wallet/token event tracker: webhook
// ingestion, buy/sell parsing, USD pricing, sliding-window alert rules,
// and chat/push notification fan-out.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/alert"
	"github.com/onchainsignal/tracker/internal/config"
	"github.com/onchainsignal/tracker/internal/dispatch"
	"github.com/onchainsignal/tracker/internal/ingress"
	"github.com/onchainsignal/tracker/internal/logger"
	"github.com/onchainsignal/tracker/internal/price"
	"github.com/onchainsignal/tracker/internal/redisclient"
	"github.com/onchainsignal/tracker/internal/registry"
	"github.com/onchainsignal/tracker/internal/router"
	"github.com/onchainsignal/tracker/internal/scheduler"
	"github.com/onchainsignal/tracker/internal/window"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().
			Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(cfg)
	log.Info().Str("env", cfg.Env).Str("target_mint", cfg.TargetTokenMint).Msg("tracker starting")

	rdb, err := redisclient.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	defer rdb.Close()

	reg, err := registry.Open(cfg.RegistryDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("registry init failed")
	}
	defer reg.Close()

	windowStore := window.New(rdb)
	priceOracle := price.New(cfg.DexQuoteURL, cfg.PriceTTL, log)

	chatClient := dispatch.NewChatClient(cfg.ChatAPIURL, cfg.ChatBotToken, log)
	pushClient := dispatch.NewPushClient(cfg.PushAPIURL, cfg.PushAppToken, log)
	notifier := dispatch.New(chatClient, pushClient, reg, cfg.ChatChannelID, log)

	thresholds := alert.Thresholds{
		ChatThresholdUSD:       cfg.ChatThresholdUSD,
		SingleThresholdUSD:     cfg.SingleThresholdUSD,
		CumulativeThresholdUSD: cfg.CumulativeThresholdUSD,
		WindowSeconds:          cfg.WindowSeconds,
		FiveSellsEnabled:       cfg.FiveSellsEnabled,
		FiveSellsThresholdUSD:  cfg.FiveSellsThresholdUSD,
	}
	engine := alert.New(thresholds, windowStore, notifier, log)

	webhookHandler := ingress.NewHandler(cfg.TargetTokenMint, priceOracle, engine, log)
	defer webhookHandler.Close()

	healthHandler := ingress.NewHealthHandler(
		windowStore,
		ingress.HealthThresholds{
			ChatThresholdUSD:       cfg.ChatThresholdUSD,
			SingleThresholdUSD:     cfg.SingleThresholdUSD,
			CumulativeThresholdUSD: cfg.CumulativeThresholdUSD,
			WindowSeconds:          cfg.WindowSeconds,
		},
		reg.WalletCount,
		func() (int, error) {
			subs, err := reg.SubscribersGeneral()
			if err != nil {
				return 0, err
			}
			return len(subs), nil
		},
	)

	priceStatsHandler := ingress.NewPriceStatsHandler(cfg.TargetTokenMint, priceOracle)

	testNotificationsHandler := ingress.NewTestNotificationsHandler(notifier, pushClient, func() (string, error) {
		subs, err := reg.SubscribersGeneral()
		if err != nil {
			return "", err
		}
		if len(subs) == 0 {
			return "", nil
		}
		return subs[0].PushKey, nil
	})

	provisioningClient := ingress.NewHTTPProvisioningClient(cfg.WebhookProvisionURL, cfg.WebhookProvisionAPIKey, log)
	adminHandler := ingress.NewAdminHandler(reg, provisioningClient)

	httpHandler := router.New(router.Deps{
		Logger:            log,
		AdminAPIKey:       cfg.AdminAPIKey,
		Webhook:           webhookHandler,
		Health:            healthHandler,
		PriceStats:        priceStatsHandler,
		TestNotifications: testNotificationsHandler,
		MountAdmin:        adminHandler.Routes,
	})

	sched := scheduler.New(windowStore, notifier, cfg.TargetTokenMint, log)
	sched.Start()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("tracker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("tracker stopped gracefully")
	}
}
