package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agora-markets/agora/internal/api"
	"github.com/agora-markets/agora/internal/asset"
	"github.com/agora-markets/agora/internal/bank"
	"github.com/agora-markets/agora/internal/config"
	"github.com/agora-markets/agora/internal/market"
	"github.com/agora-markets/agora/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Agora market node starting (env=%s)\n", cfg.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Market.ReserveFloorWei > 0 {
		market.MinReservePrice = big.NewInt(cfg.Market.ReserveFloorWei)
	}

	assets := asset.NewLedger()
	funds := bank.New()
	feed := market.NewFeed()

	props := market.NewProposalEngine(assets, funds, feed)
	aucts := market.NewAuctionEngine(assets, funds, feed)

	if cfg.Redis.Addr != "" {
		client := stream.NewGoRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		writer := stream.NewRedisWriter(client, feed.Subscribe())
		go writer.Run(ctx)
	}

	feedCfg := stream.DefaultServerConfig()
	feedCfg.PingInterval = time.Duration(cfg.Feed.PingIntervalSec) * time.Second
	feedCfg.WriteTimeout = time.Duration(cfg.Feed.WriteTimeoutSec) * time.Second

	router := api.NewServer(props, aucts, assets, funds).Router()
	router.Handle("/ws", stream.NewServer(feedCfg, feed))

	srv := &http.Server{Addr: cfg.Feed.ListenAddr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "feed server: %v\n", err)
			cancel()
		}
	}()

	<-ctx.Done()
	fmt.Println("Agora shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}
