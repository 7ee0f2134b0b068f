package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"

	"swapStreamApp/config"
	"swapStreamApp/internal/infrastructure/cache"
)

func main() {
	fmt.Println("swapStreamApp Health Check Utility")
	fmt.Println("----------------------------------")

	cfg, err := config.LoadConfig()
	if err != nil {
		color.Red("failed to load config: %v", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	healthy := true
	for _, feed := range cfg.Feeds {
		url := fmt.Sprintf("http://localhost:%d/health", feed.Port)
		if err := checkServiceHealth(client, url); err != nil {
			healthy = false
			color.Red("%-10s %s  DOWN (%v)", feed.Name, url, err)
			continue
		}
		color.Green("%-10s %s  OK", feed.Name, url)
	}

	if cfg.Redis.Addr != "" {
		printCachedStats(cfg)
	}

	if !healthy {
		fmt.Println("Service is NOT healthy!")
		os.Exit(1)
	}
	fmt.Println("Service is healthy!")
}

func checkServiceHealth(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if body["status"] != "ok" {
		return fmt.Errorf("status %q", body["status"])
	}
	return nil
}

func printCachedStats(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo := cache.NewRedisRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.StatsTTL)
	defer repo.Close()

	all, err := repo.GetAllBridgeStats(ctx)
	if err != nil {
		color.Yellow("cached stats unavailable: %v", err)
		return
	}

	fmt.Println()
	fmt.Println("Cached bridge stats:")
	for _, s := range all {
		fmt.Printf("  %-10s state=%-12s subscribers=%-4d consumed=%-8d decodeFailures=%-6d deliveries=%-8d updated=%s\n",
			s.Feed, s.ConsumerState, s.Subscribers, s.Consumed, s.DecodeFailures, s.Deliveries,
			s.LastUpdate.Format(time.RFC3339))
	}
}
