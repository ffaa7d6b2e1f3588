package source

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// 数据源类型：structured 为 HTML 页面（CSS 选择器抽取），feed 为 RSS/Atom
const (
	KindStructured = "structured"
	KindFeed       = "feed"
)

// Selectors 结构化源的字段抽取规则，均为 CSS 选择器
type Selectors struct {
	// ArticleList 匹配页面上重复出现的文章块
	ArticleList string `yaml:"article_list"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Date        string `yaml:"date"`
	Summary     string `yaml:"summary"`
}

// Definition 一个数据源的声明式配置，进程启动时加载，运行期不可变
type Definition struct {
	Name        string    `yaml:"name"`
	DisplayName string    `yaml:"display_name"`
	Kind        string    `yaml:"kind"`
	URL         string    `yaml:"url"`
	Selectors   Selectors `yaml:"selectors"`
	// DateFormat 源特有的日期文本格式（Go layout），可选
	DateFormat string `yaml:"date_format"`
	// RateLimitSeconds 对该源两次请求之间的最小间隔
	RateLimitSeconds int `yaml:"rate_limit_seconds"`
	MaxArticles      int `yaml:"max_articles"`
}

// Defaults 全局默认项，单个源未配置时回退使用
type Defaults struct {
	UserAgent             string `yaml:"user_agent"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MaxArticlesPerSource  int    `yaml:"max_articles_per_source"`
}

type Config struct {
	Defaults Defaults     `yaml:"defaults"`
	Sources  []Definition `yaml:"sources"`
}

// Load 从 YAML 文件加载源配置。任何校验失败都视为配置错误，
// 由调用方在启动阶段 fatal 处理，不会带病运行。
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse sources config: %w", err)
	}

	if cfg.Defaults.UserAgent == "" {
		cfg.Defaults.UserAgent = "NewsRadarBot/1.0"
	}
	if cfg.Defaults.RequestTimeoutSeconds <= 0 {
		cfg.Defaults.RequestTimeoutSeconds = 30
	}
	if cfg.Defaults.MaxArticlesPerSource <= 0 {
		cfg.Defaults.MaxArticlesPerSource = 50
	}

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("sources config %s: no sources defined", path)
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("sources config %s: %w", path, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("sources config %s: duplicate source name %q", path, s.Name)
		}
		seen[s.Name] = true

		if s.DisplayName == "" {
			s.DisplayName = s.Name
		}
		if s.MaxArticles <= 0 {
			s.MaxArticles = cfg.Defaults.MaxArticlesPerSource
		}
	}

	return &cfg, nil
}

func validate(s *Definition) error {
	if s.Name == "" {
		return fmt.Errorf("source with url %q: missing name", s.URL)
	}
	if s.Kind != KindStructured && s.Kind != KindFeed {
		return fmt.Errorf("source %s: kind must be %q or %q, got %q", s.Name, KindStructured, KindFeed, s.Kind)
	}
	u, err := url.Parse(s.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("source %s: url %q is not an absolute http(s) url", s.Name, s.URL)
	}
	if s.Kind == KindStructured && s.Selectors.ArticleList == "" {
		return fmt.Errorf("source %s: structured source requires selectors.article_list", s.Name)
	}
	if s.RateLimitSeconds < 0 {
		return fmt.Errorf("source %s: rate_limit_seconds must be >= 0", s.Name)
	}
	return nil
}

// ByName 按名称查找源，找不到返回 nil
func (c *Config) ByName(name string) *Definition {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}
