package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"tokenswap/internal/config"
	"tokenswap/internal/feed"
	"tokenswap/internal/feed/retry"
	"tokenswap/internal/httpx"
	"tokenswap/internal/pricebook"
)

func main() {
	var endpoint string
	var timeout int
	var retries int
	var raw bool
	var configPath string

	flag.StringVar(&endpoint, "endpoint", os.Getenv("FEED_ENDPOINT"), "feed URL (defaults to config)")
	flag.IntVar(&timeout, "timeout", getenvInt("FEED_TIMEOUT_SEC", 0), "request timeout seconds (defaults to config)")
	flag.IntVar(&retries, "retries", getenvInt("FEED_RETRIES", 0), "fetch retries (defaults to config)")
	flag.BoolVar(&raw, "raw", false, "print raw feed records instead of the normalized book")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if endpoint != "" {
		cfg.Feed.Endpoint = endpoint
	}
	if timeout > 0 {
		cfg.Feed.TimeoutSec = timeout
	}
	if retries > 0 {
		cfg.Feed.MaxRetries = retries
	}

	httpClient := httpx.New(time.Duration(cfg.Feed.TimeoutSec) * time.Second)
	var source feed.Source = feed.NewClient(
		feed.WithEndpoint(cfg.Feed.Endpoint),
		feed.WithHTTPClient(httpClient),
	)
	if cfg.Feed.MaxRetries > 0 {
		source = &retry.Source{S: source, MaxRetries: cfg.Feed.MaxRetries}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Feed.TimeoutSec)*time.Second)
	defer cancel()

	records, err := source.Fetch(ctx)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	log.Printf("%s: %d records", source.Name(), len(records))

	if raw {
		b, _ := json.MarshalIndent(struct {
			Records []feed.Record `json:"records"`
		}{Records: records}, "", "  ")
		fmt.Println(string(b))
		return
	}

	book := pricebook.Normalize(records)
	out := struct {
		Tokens []string                   `json:"tokens"`
		Prices map[string]decimal.Decimal `json:"prices"`
	}{Tokens: book.Tokens(), Prices: book.Prices()}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
