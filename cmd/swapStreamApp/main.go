package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"swapStreamApp/config"
	"swapStreamApp/internal/app"
	"swapStreamApp/internal/domain/service"
	"swapStreamApp/internal/handlers/http"
	"swapStreamApp/internal/lib/logger/handlers/slogpretty"
	"swapStreamApp/internal/lib/logger/sl"
	"swapStreamApp/pkg/utils"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	demo := flag.Bool("demo", false, "publish generated trades to every feed topic")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *demo {
		cfg.Demo = true
	}

	log := setupLogger(cfg.Env)
	if cfg.Env != envLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("initializing app", slog.String("env", cfg.Env), slog.Int("feeds", len(cfg.Feeds)))

	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	var wg sync.WaitGroup
	servers := make([]*http.Server, 0, len(application.Bridges))

	for _, bridge := range application.Bridges {
		feed, _ := cfg.Feed(bridge.Feed)
		srv := http.NewServer(feed.Addr(cfg.Bridge.HTTPHost), bridge, log.With(slog.String("feed", feed.Name)))
		servers = append(servers, srv)

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := bridge.Run(ctx); err != nil {
				log.Error("bridge stopped with error", slog.String("feed", bridge.Feed), sl.Err(err))
			}
		}()
		go func() {
			defer wg.Done()
			if err := srv.Start(); err != nil {
				log.Error("http server error", slog.String("feed", bridge.Feed), sl.Err(err))
				stop()
			}
		}()
	}

	// !!! For DEMO purposes only, not for production use
	for feed, producer := range application.Producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			generator := utils.NewTradeGenerator(demoQuoteSymbol(feed))
			service.NewTradeProducerUseCase(producer, generator, log.With(slog.String("feed", feed))).Run(ctx)
		}()
	}

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown error", sl.Err(err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("timed out waiting for bridges to stop")
	}

	application.Cleanup(shutdownCtx)
	log.Info("service stopped")
}

func demoQuoteSymbol(feed string) string {
	if feed == "bsc" {
		return "WBNB"
	}
	return "WETH"
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
		log.Warn("unknown ENV, using prod logging", slog.String("env", env))
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
