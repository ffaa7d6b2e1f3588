package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/NewsRadar/internal/storage"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const searchMaxTokens = 1024

const searchSystemPrompt = `You are an AI assistant helping users explore and understand news about AI companies, foundational model labs, and SaaS startups.

You have access to a collection of recently scraped news articles. When answering questions:
- Be concise and informative
- Reference specific articles when relevant
- If information isn't in the provided articles, say so clearly
- Format your response nicely with bullet points or sections when appropriate
- Include relevant URLs so users can read the full articles`

// ArticleProvider 检索所需的最小存储接口
type ArticleProvider interface {
	List(source string, limit, offset int) ([]storage.Article, error)
}

// Search 基于已入库语料的自然语言检索。未配置 API key 时 Available 为 false，
// 调用方自行降级（API 返回 503、CLI 打印提示）
type Search struct {
	articles ArticleProvider
	client   *anthropic.Client
	model    anthropic.Model
}

func NewSearch(articles ArticleProvider, apiKey, model string) *Search {
	s := &Search{articles: articles, model: anthropic.Model(model)}
	if apiKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(apiKey))
		s.client = &client
	}
	return s
}

func (s *Search) Available() bool {
	return s.client != nil
}

// SearchResult 一次检索的应答
type SearchResult struct {
	Response         string    `json:"response"`
	ArticlesSearched int       `json:"articlesSearched"`
	Query            string    `json:"query"`
	Timestamp        time.Time `json:"timestamp"`
}

// Query 把最近 maxArticles 篇文章拼成上下文，连同问题一起交给模型
func (s *Search) Query(ctx context.Context, query string, maxArticles int) (*SearchResult, error) {
	if !s.Available() {
		return nil, fmt.Errorf("ai search unavailable: ANTHROPIC_API_KEY not configured")
	}
	if maxArticles <= 0 || maxArticles > 500 {
		maxArticles = 100
	}

	articles, err := s.articles.List("", maxArticles, 0)
	if err != nil {
		return nil, fmt.Errorf("load articles for search: %w", err)
	}

	userMessage := fmt.Sprintf(`Here are the recent AI news articles I have access to:

%s

User's question: %s

Please answer based on the articles above. If the answer isn't in these articles, let me know.`, buildContext(articles), query)

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: searchMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: searchSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from anthropic")
	}

	return &SearchResult{
		Response:         resp.Content[0].Text,
		ArticlesSearched: len(articles),
		Query:            query,
		Timestamp:        time.Now().UTC(),
	}, nil
}

// buildContext 把文章拼成模型可读的上下文块
func buildContext(articles []storage.Article) string {
	if len(articles) == 0 {
		return "No articles available."
	}

	var b strings.Builder
	for _, a := range articles {
		date := "Unknown"
		if a.PublishedAt != nil {
			date = a.PublishedAt.Format("2006-01-02")
		}
		summary := a.Summary
		if summary == "" {
			summary = "No summary available."
		}
		fmt.Fprintf(&b, `
---
Title: %s
Source: %s
Date: %s
URL: %s
Summary: %s
---`, a.Title, a.SourceName, date, a.URL, summary)
	}
	return b.String()
}
