package collector

import (
	"bytes"
	"errors"
	"time"

	"github.com/LJTian/NewsRadar/internal/source"
	"github.com/mmcdole/gofeed"
)

// ParseFeed 解析 RSS/Atom 内容为文章草稿。gofeed 自动识别具体格式，
// 发布时间优先用解析好的时间戳，拿不到再退回原始字符串。
func ParseFeed(body []byte, def *source.Definition) ([]Draft, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Source: def.Name, Err: errors.New("empty body")}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Source: def.Name, Err: err}
	}

	drafts := make([]Draft, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		date := item.Published
		if item.PublishedParsed != nil {
			date = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			date = item.UpdatedParsed.UTC().Format(time.RFC3339)
		} else if date == "" {
			date = item.Updated
		}

		summary := item.Description
		if summary == "" && item.Content != "" {
			summary = item.Content
		}

		drafts = append(drafts, Draft{
			Title:   item.Title,
			Link:    item.Link,
			Date:    date,
			Summary: summary,
		})
		if len(drafts) >= def.MaxArticles {
			break
		}
	}

	return drafts, nil
}

// Parse 按源类型分发到对应的解析器
func Parse(res *FetchResult, def *source.Definition) ([]Draft, error) {
	if def.Kind == source.KindFeed {
		return ParseFeed(res.Body, def)
	}
	return ParseStructured(res.Body, def)
}
