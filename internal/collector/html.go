package collector

import (
	"bytes"
	"errors"
	"strings"

	"github.com/LJTian/NewsRadar/internal/source"
	"github.com/PuerkitoBio/goquery"
)

// 主选择器没命中时的兜底容器模式，按顺序尝试（页面结构经常变，尽力而为）
var fallbackContainerSelectors = []string{
	"article",
	"[class*='post']",
	"[class*='article']",
	"[class*='card']",
	"[class*='entry']",
	"[class*='news-item']",
	".blog-post",
	".post-item",
}

// 日期可能藏在的属性名
var dateAttrs = []string{"datetime", "data-date", "data-published", "data-time"}

// ParseStructured 按源配置的 CSS 规则从 HTML 中抽取文章草稿。
// 单个字段缺失只会让对应字段留空，不会丢弃整篇；相对链接原样保留，
// 绝对化与校验在 processor 里完成。
func ParseStructured(body []byte, def *source.Definition) ([]Draft, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Source: def.Name, Err: errors.New("empty body")}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Source: def.Name, Err: err}
	}

	blocks := doc.Find(def.Selectors.ArticleList)
	if blocks.Length() == 0 {
		for _, pattern := range fallbackContainerSelectors {
			if sel := doc.Find(pattern); sel.Length() > 0 {
				blocks = sel
				break
			}
		}
	}

	drafts := make([]Draft, 0, blocks.Length())
	blocks.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		drafts = append(drafts, Draft{
			Title:   extractTitle(s, def.Selectors.Title),
			Link:    extractLink(s, def.Selectors),
			Date:    extractDate(s, def.Selectors.Date),
			Summary: extractSummary(s, def.Selectors.Summary),
		})
		return len(drafts) < def.MaxArticles
	})

	return drafts, nil
}

func extractTitle(s *goquery.Selection, selector string) string {
	if selector == "" {
		selector = "h1, h2, h3, [class*='title']"
	}
	if el := s.Find(selector).First(); el.Length() > 0 {
		if t := strings.TrimSpace(el.Text()); t != "" {
			return t
		}
	}

	// 兜底：任意标题标签
	for _, tag := range []string{"h1", "h2", "h3", "h4"} {
		if el := s.Find(tag).First(); el.Length() > 0 {
			if t := strings.TrimSpace(el.Text()); t != "" {
				return t
			}
		}
	}

	// 最后尝试第一个链接的文本
	if el := s.Find("a").First(); el.Length() > 0 {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func extractLink(s *goquery.Selection, sel source.Selectors) string {
	// 标题里的链接优先，通常就是文章地址
	titleSelector := sel.Title
	if titleSelector == "" {
		titleSelector = "h1, h2, h3"
	}
	if titleEl := s.Find(titleSelector).First(); titleEl.Length() > 0 {
		if href, ok := titleEl.Find("a").First().Attr("href"); ok && usableHref(href) {
			return strings.TrimSpace(href)
		}
		// 标题本身就是 <a> 的情况
		if goquery.NodeName(titleEl) == "a" {
			if href, ok := titleEl.Attr("href"); ok && usableHref(href) {
				return strings.TrimSpace(href)
			}
		}
	}

	linkSelector := sel.Link
	if linkSelector == "" {
		linkSelector = "a"
	}
	var found string
	s.Find(linkSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if href, ok := el.Attr("href"); ok && usableHref(href) {
			found = strings.TrimSpace(href)
			return false
		}
		return true
	})
	return found
}

func usableHref(href string) bool {
	href = strings.TrimSpace(href)
	return href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:")
}

func extractDate(s *goquery.Selection, selector string) string {
	// <time datetime="..."> 最可靠，最先看
	if el := s.Find("time").First(); el.Length() > 0 {
		if dt, ok := el.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return strings.TrimSpace(dt)
		}
	}

	if selector == "" {
		selector = "time, [class*='date'], [datetime]"
	}
	if el := s.Find(selector).First(); el.Length() > 0 {
		if dt, ok := el.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return strings.TrimSpace(dt)
		}
		if t := strings.TrimSpace(el.Text()); t != "" {
			return t
		}
	}

	for _, attr := range dateAttrs {
		var found string
		s.Find("[" + attr + "]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
				found = strings.TrimSpace(v)
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func extractSummary(s *goquery.Selection, selector string) string {
	if selector == "" {
		selector = "p, [class*='description'], [class*='excerpt']"
	}
	if el := s.Find(selector).First(); el.Length() > 0 {
		if t := strings.TrimSpace(el.Text()); len(t) > 20 {
			return t
		}
	}

	// 兜底：第一个有实质内容的段落
	var found string
	s.Find("p").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if t := strings.TrimSpace(el.Text()); len(t) > 50 {
			found = t
			return false
		}
		return true
	})
	return found
}
