// Command feedwatch subscribes to one feed the way a viewer does and logs what
// it sees: connection state, buffered events and running statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swapStreamApp/config"
	"swapStreamApp/internal/client"
	"swapStreamApp/internal/lib/logger/handlers/slogpretty"
	"swapStreamApp/internal/lib/logger/sl"
)

func main() {
	feedName := flag.String("feed", "ethereum", "configured feed to watch")
	url := flag.String("url", "", "websocket URL, overrides -feed")
	report := flag.Duration("report", 5*time.Second, "statistics report interval")
	clearEvery := flag.Duration("clear-every", 0, "clear buffered events periodically (0 disables)")
	flag.Parse()

	log := slog.New(slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo},
	}.NewPrettyHandler(os.Stdout))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("failed to load config", sl.Err(err))
		os.Exit(1)
	}

	target := *url
	if target == "" {
		feed, ok := cfg.Feed(*feedName)
		if !ok {
			log.Error("unknown feed", slog.String("feed", *feedName))
			os.Exit(1)
		}
		target = fmt.Sprintf("ws://localhost:%d", feed.Port)
	}

	c := client.New(client.Options{
		URL:            target,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		BufferCapacity: cfg.Client.BufferCapacity,
		Log:            log,
	})
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c.Connect()
	defer c.Disconnect()

	reportTicker := time.NewTicker(*report)
	defer reportTicker.Stop()

	var clearC <-chan time.Time
	if *clearEvery > 0 {
		clearTicker := time.NewTicker(*clearEvery)
		defer clearTicker.Stop()
		clearC = clearTicker.C
	}

	lastState := client.StateDisconnected
	lastErr := ""
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping feed watcher")
			return

		case <-c.Changes():
			snap := c.Snapshot()
			if snap.State != lastState || snap.Error != lastErr {
				log.Info("connection state",
					slog.String("state", snap.State.String()),
					slog.String("error", snap.Error),
				)
				lastState, lastErr = snap.State, snap.Error
			}

		case <-reportTicker.C:
			snap := c.Snapshot()
			attrs := []any{
				slog.Int("buffered", len(snap.Events)),
				slog.Int("total", snap.Stats.TotalEvents),
				slog.Int("buys", snap.Stats.BuyEvents),
				slog.Int("sells", snap.Stats.SellEvents),
				slog.Float64("volumeUsd", snap.Stats.TotalVolume),
				slog.Float64("avgProcessingUs", snap.Stats.AvgProcessingTime),
			}
			if len(snap.Events) > 0 {
				latest := snap.Events[0]
				attrs = append(attrs,
					slog.String("latestTx", latest.TransactionID),
					slog.String("latestType", latest.TradeType.String()),
					slog.String("latestToken", latest.BaseMintSymbol),
				)
			}
			log.Info("feed stats", attrs...)

		case <-clearC:
			c.ClearEvents()
			log.Info("events cleared")
		}
	}
}
