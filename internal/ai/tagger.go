package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"gopkg.in/yaml.v3"
)

// Stock 关注股票的配置项
type Stock struct {
	Ticker   string   `yaml:"ticker"`
	Name     string   `yaml:"name"`
	Sector   string   `yaml:"sector"`
	Keywords []string `yaml:"keywords"`
}

// ImpactedStock 模型判定受某篇新闻影响的股票
type ImpactedStock struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// TagResult 单篇文章的打标结果
type TagResult struct {
	TLDR           string          `json:"tldr"`
	ImpactedStocks []ImpactedStock `json:"impacted_stocks"`
}

// Tagger 用模型分析文章并标注受影响的股票。增强字段由它回写，
// 核心采集流水线不依赖它
type Tagger struct {
	stocks []Stock
	client *anthropic.Client
	model  anthropic.Model
}

// 模型回复里可能混着说明文字，只取第一个 JSON 对象
var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

func NewTagger(stocksPath, apiKey, model string) (*Tagger, error) {
	t := &Tagger{model: anthropic.Model(model)}

	if stocksPath != "" {
		raw, err := os.ReadFile(stocksPath)
		if err != nil {
			return nil, fmt.Errorf("read stocks config: %w", err)
		}
		var cfg struct {
			Stocks []Stock `yaml:"stocks"`
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse stocks config: %w", err)
		}
		t.stocks = cfg.Stocks
	}

	if apiKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(apiKey))
		t.client = &client
	}
	return t, nil
}

func (t *Tagger) Available() bool {
	return t.client != nil && len(t.stocks) > 0
}

// Tag 分析一篇文章，产出 TLDR 与受影响股票列表。
// 模型回复不可解析时退回截断摘要 + 空列表，不报错
func (t *Tagger) Tag(ctx context.Context, title, summary, sourceName, url string) (*TagResult, error) {
	fallback := &TagResult{TLDR: truncate(summary, 200)}
	if fallback.TLDR == "" {
		fallback.TLDR = truncate(title, 200)
	}

	if !t.Available() {
		return fallback, nil
	}

	prompt := fmt.Sprintf(`Analyze this AI news article and determine which software stocks from the coverage list would be impacted.

%s

ARTICLE:
Title: %s
Source: %s
Summary: %s
URL: %s

Please provide:
1. A TLDR summary (1-2 sentences, concise and informative)
2. List of impacted stock tickers (only from the list above, can be empty if none directly impacted)
3. Brief explanation of why each stock is impacted (1 sentence each)

Respond in this exact JSON format:
{
    "tldr": "Your 1-2 sentence TLDR summary here",
    "impacted_stocks": [
        {"ticker": "MSFT", "reason": "why it is impacted"}
    ]
}

If no stocks are clearly impacted, return an empty array for impacted_stocks.
Only include stocks that have a clear, direct connection to the news.`,
		t.stocksContext(), title, sourceName, summary, url)

	resp, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     t.model,
		MaxTokens: searchMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return fallback, nil
	}

	result, ok := extractTagResult(resp.Content[0].Text)
	if !ok {
		return fallback, nil
	}
	if result.TLDR == "" {
		result.TLDR = fallback.TLDR
	}
	// 只保留确实在关注列表里的代码，模型偶尔会编
	result.ImpactedStocks = t.filterKnown(result.ImpactedStocks)
	return result, nil
}

func (t *Tagger) stocksContext() string {
	lines := []string{"Here are the software stocks to consider:\n"}
	for _, s := range t.stocks {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s - Keywords: %s",
			s.Ticker, s.Name, s.Sector, strings.Join(s.Keywords, ", ")))
	}
	return strings.Join(lines, "\n")
}

func (t *Tagger) filterKnown(stocks []ImpactedStock) []ImpactedStock {
	known := make(map[string]bool, len(t.stocks))
	for _, s := range t.stocks {
		known[s.Ticker] = true
	}
	out := stocks[:0]
	for _, s := range stocks {
		if known[s.Ticker] {
			out = append(out, s)
		}
	}
	return out
}

// Tickers 关注列表里的全部股票代码
func (t *Tagger) Tickers() []string {
	out := make([]string, 0, len(t.stocks))
	for _, s := range t.stocks {
		out = append(out, s.Ticker)
	}
	return out
}

func extractTagResult(reply string) (*TagResult, bool) {
	m := jsonObjectRe.FindString(reply)
	if m == "" {
		return nil, false
	}
	var result TagResult
	if err := json.Unmarshal([]byte(m), &result); err != nil {
		return nil, false
	}
	return &result, true
}

func truncate(s string, limit int) string {
	rs := []rune(strings.TrimSpace(s))
	if len(rs) <= limit {
		return string(rs)
	}
	return string(rs[:limit])
}
