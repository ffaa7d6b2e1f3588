package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
defaults:
  user_agent: "TestBot/1.0"
  request_timeout_seconds: 10
  max_articles_per_source: 20

sources:
  - name: blog
    display_name: Some Blog
    kind: structured
    url: https://example.com/blog
    selectors:
      article_list: ".post"
      title: "h2"
    rate_limit_seconds: 2

  - name: feedsrc
    kind: feed
    url: https://example.com/rss
    max_articles: 5
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Defaults.UserAgent != "TestBot/1.0" || cfg.Defaults.RequestTimeoutSeconds != 10 {
		t.Fatalf("defaults = %+v", cfg.Defaults)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}

	blog := cfg.ByName("blog")
	if blog == nil || blog.Kind != KindStructured || blog.Selectors.ArticleList != ".post" {
		t.Fatalf("blog source = %+v", blog)
	}
	// 未配置 max_articles 时回退到全局默认
	if blog.MaxArticles != 20 {
		t.Fatalf("blog.MaxArticles = %d, want defaults value 20", blog.MaxArticles)
	}

	feed := cfg.ByName("feedsrc")
	if feed == nil || feed.Kind != KindFeed {
		t.Fatalf("feed source = %+v", feed)
	}
	// display_name 缺省用 name 顶上
	if feed.DisplayName != "feedsrc" {
		t.Fatalf("feed.DisplayName = %q", feed.DisplayName)
	}
	if feed.MaxArticles != 5 {
		t.Fatalf("feed.MaxArticles = %d, want 5", feed.MaxArticles)
	}

	if cfg.ByName("nope") != nil {
		t.Fatalf("unknown source must be nil")
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - name: blog
    kind: structured
    url: https://example.com/blog
    selectors:
      article_list: ".post"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Defaults.UserAgent == "" {
		t.Fatalf("user agent default not filled")
	}
	if cfg.Defaults.RequestTimeoutSeconds != 30 || cfg.Defaults.MaxArticlesPerSource != 50 {
		t.Fatalf("defaults = %+v", cfg.Defaults)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no sources",
			body: `defaults: {}`,
			want: "no sources defined",
		},
		{
			name: "missing name",
			body: "sources:\n  - kind: feed\n    url: https://example.com/rss",
			want: "missing name",
		},
		{
			name: "bad kind",
			body: "sources:\n  - name: x\n    kind: scrape\n    url: https://example.com",
			want: "kind must be",
		},
		{
			name: "relative url",
			body: "sources:\n  - name: x\n    kind: feed\n    url: /rss",
			want: "not an absolute",
		},
		{
			name: "structured without article_list",
			body: "sources:\n  - name: x\n    kind: structured\n    url: https://example.com",
			want: "article_list",
		},
		{
			name: "negative rate limit",
			body: "sources:\n  - name: x\n    kind: feed\n    url: https://example.com/rss\n    rate_limit_seconds: -1",
			want: "rate_limit_seconds",
		},
		{
			name: "duplicate names",
			body: "sources:\n  - name: x\n    kind: feed\n    url: https://example.com/a\n  - name: x\n    kind: feed\n    url: https://example.com/b",
			want: "duplicate source name",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.body))
			if err == nil {
				t.Fatalf("Load must fail")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err = %q, want substring %q", err, c.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("missing file must fail")
	}
}
