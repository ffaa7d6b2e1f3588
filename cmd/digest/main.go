package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/NewsRadar/internal/ai"
	"github.com/LJTian/NewsRadar/internal/config"
	"github.com/LJTian/NewsRadar/internal/newsletter"
	"github.com/LJTian/NewsRadar/internal/storage"
)

// 打标 + 摘要邮件的外围任务：给未打标的文章补写 TLDR 与受影响股票，
// 然后把最近一段时间的文章汇成一期邮件发出。核心采集流水线不依赖本命令
func main() {
	hours := flag.Int("hours", 24, "digest window in hours")
	limit := flag.Int("limit", 50, "max articles per digest")
	tagOnly := flag.Bool("tag-only", false, "tag untagged articles without sending email")
	testMail := flag.Bool("test", false, "send a test email and exit")
	flag.Parse()

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	mailer := newsletter.New(cfg.SendgridAPIKey, cfg.NewsletterFrom, cfg.NewsletterTo)
	if *testMail {
		if err := mailer.SendTest(); err != nil {
			log.Fatalf("send test email failed: %v", err)
		}
		fmt.Println("Test email sent.")
		return
	}

	tagger, err := ai.NewTagger(cfg.StocksFile, cfg.AnthropicAPIKey, cfg.AnthropicModel)
	if err != nil {
		log.Fatalf("init tagger failed: %v", err)
	}

	ctx := context.Background()
	if tagger.Available() {
		tagArticles(ctx, store, tagger, *limit)
	} else {
		log.Printf("tagger unavailable (missing ANTHROPIC_API_KEY or stocks config), skip tagging")
	}

	if *tagOnly {
		return
	}

	if !mailer.Available() {
		log.Fatalf("newsletter unavailable: SENDGRID_API_KEY or NEWSLETTER_TO not configured")
	}

	since := time.Now().Add(-time.Duration(*hours) * time.Hour)
	articles, err := store.ListSince(since, *limit)
	if err != nil {
		log.Fatalf("load digest articles failed: %v", err)
	}
	if len(articles) == 0 {
		fmt.Printf("No articles scraped in the last %dh, nothing to send.\n", *hours)
		return
	}

	if err := mailer.Send(articles, ""); err != nil {
		log.Fatalf("send digest failed: %v", err)
	}
	fmt.Printf("Digest sent: %d articles.\n", len(articles))
}

// tagArticles 给尚未打标的文章补写增强字段，单篇失败只记日志不中断
func tagArticles(ctx context.Context, store *storage.Store, tagger *ai.Tagger, limit int) {
	untagged, err := store.ListUntagged(limit)
	if err != nil {
		log.Printf("load untagged articles failed: %v", err)
		return
	}

	tagged := 0
	for _, a := range untagged {
		result, err := tagger.Tag(ctx, a.Title, a.Summary, a.SourceName, a.URL)
		if err != nil {
			log.Printf("tag article %s failed: %v", a.ID, err)
			continue
		}

		var stocksJSON []byte
		if len(result.ImpactedStocks) > 0 {
			stocksJSON, _ = json.Marshal(result.ImpactedStocks)
		}
		if err := store.SaveEnrichment(a.ID, result.TLDR, stocksJSON); err != nil {
			log.Printf("save enrichment for %s failed: %v", a.ID, err)
			continue
		}
		tagged++
	}
	log.Printf("tagging done: %d/%d articles", tagged, len(untagged))
}
