package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/LJTian/NewsRadar/internal/ai"
	"github.com/LJTian/NewsRadar/internal/config"
	"github.com/LJTian/NewsRadar/internal/storage"
)

// 终端里的自然语言检索：对已入库的语料提问
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: search <question ...>")
		os.Exit(2)
	}
	query := strings.Join(os.Args[1:], " ")

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	search := ai.NewSearch(store, cfg.AnthropicAPIKey, cfg.AnthropicModel)
	if !search.Available() {
		log.Fatalf("ANTHROPIC_API_KEY not set, ai search is unavailable")
	}

	fmt.Printf("Searching: %s\n\n", query)

	result, err := search.Query(context.Background(), query, 100)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	fmt.Println(result.Response)
	fmt.Printf("\n(searched %d articles)\n", result.ArticlesSearched)
}
