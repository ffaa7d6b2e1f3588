package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/config"
	"github.com/LJTian/NewsRadar/internal/pipeline"
	"github.com/LJTian/NewsRadar/internal/source"
	"github.com/LJTian/NewsRadar/internal/storage"
)

// 一个仅执行一轮采集的命令行入口：适合手动触发与排查单个源
func main() {
	cfg := config.Load()

	srcCfg, err := source.Load(cfg.SourcesFile)
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	fetcher := collector.NewFetcher(srcCfg.Defaults, collector.NewRateLimiter())
	orchestrator := pipeline.New(
		srcCfg,
		fetcher.Fetch,
		collector.Parse,
		store,
		func() (pipeline.Index, error) { return store.DedupIndex(cfg.DedupLookback) },
		pipeline.WithWorkers(cfg.WorkerCount),
		pipeline.WithRunTimeout(time.Duration(cfg.RunTimeoutSeconds)*time.Second),
	)

	summary := orchestrator.RunOnce(context.Background())
	summary.Log()

	if summary.Err != "" {
		log.Fatalf("collect run failed: %s", summary.Err)
	}

	fmt.Println("\nScrape complete!")
	for _, r := range summary.Results {
		if r.Err != "" {
			fmt.Printf("  %s: FAILED (%s)\n", r.Source, r.Err)
			continue
		}
		fmt.Printf("  %s: %d found, %d new\n", r.Source, r.Parsed, r.Accepted)
	}
	fmt.Printf("  New articles: %d\n", summary.Accepted)
}
