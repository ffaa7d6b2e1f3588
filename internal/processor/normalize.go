package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/source"
)

// ErrRejected 草稿缺少可用标题或可用链接，无法成为有意义的文章。
// 按篇计数后静默丢弃，不向上传播
var ErrRejected = errors.New("draft rejected: missing usable title or link")

const summaryMaxRunes = 300

// Article 规范化后的文章，入库前的最终形态
type Article struct {
	ID           string
	Source       string
	SourceName   string
	Title        string
	URL          string // 展示用的绝对链接
	CanonicalURL string // 身份用的规范链接（去跟踪参数等）
	PublishedAt  *time.Time
	Summary      string
	ScrapedAt    time.Time
}

// 解析发布日期时按顺序尝试的格式；源自带 date_format 时放最前面
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
}

var (
	htmlTagRe  = regexp.MustCompile(`<[^>]*>`)
	ordinalRe  = regexp.MustCompile(`(\d+)(st|nd|rd|th)`)
	trackingRe = regexp.MustCompile(`^utm_`)
)

// 非 utm_ 前缀但同样属于跟踪参数的键
var trackingParams = map[string]bool{
	"ref":    true,
	"fbclid": true,
	"gclid":  true,
}

// Normalize 把草稿变成可入库的 Article：清洗文本、绝对化并规范链接、
// 解析日期、生成确定性 ID。同一草稿重复调用产出完全相同的结果。
func Normalize(d collector.Draft, def *source.Definition, now time.Time) (*Article, error) {
	title := CleanText(d.Title)
	absURL := resolveLink(d.Link, def.URL)

	if title == "" || absURL == "" {
		return nil, ErrRejected
	}

	canonical := CanonicalURL(absURL)

	return &Article{
		ID:           ArticleID(def.Name, canonical),
		Source:       def.Name,
		SourceName:   def.DisplayName,
		Title:        title,
		URL:          absURL,
		CanonicalURL: canonical,
		PublishedAt:  parseDate(d.Date, def.DateFormat),
		Summary:      truncateSummary(CleanText(d.Summary)),
		ScrapedAt:    now.UTC(),
	}, nil
}

// ArticleID 由源名 + 规范链接确定性生成，相同输入永远得到相同 ID
func ArticleID(sourceName, canonicalURL string) string {
	h := sha1.New()
	h.Write([]byte(sourceName))
	h.Write([]byte("\n"))
	h.Write([]byte(canonicalURL))
	return hex.EncodeToString(h.Sum(nil))
}

// CleanText 去掉 HTML 残留并把空白折叠成单个空格
func CleanText(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// resolveLink 把可能是相对路径的链接按源地址绝对化，无法解析返回空串
func resolveLink(link, baseURL string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	rel, err := url.Parse(link)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(rel)
	if !abs.IsAbs() || abs.Host == "" {
		return ""
	}
	return abs.String()
}

// CanonicalURL 生成身份用的规范形式：scheme/host 小写、去 fragment、
// 去跟踪查询参数、非根路径去掉末尾斜杠。展示仍用原始绝对链接
func CanonicalURL(absURL string) string {
	u, err := url.Parse(absURL)
	if err != nil {
		return absURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if trackingRe.MatchString(strings.ToLower(key)) || trackingParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// parseDate 按格式表解析日期文本，全部失败返回 nil（入库为 NULL，不算错误）
func parseDate(raw, sourceLayout string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.Join(strings.Fields(raw), " ")
	raw = ordinalRe.ReplaceAllString(raw, "$1") // "June 3rd" -> "June 3"

	layouts := dateLayouts
	if sourceLayout != "" {
		layouts = append([]string{sourceLayout}, dateLayouts...)
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			// 1970 附近的时间基本是上游给的坏数据，当作没有日期
			if t.Year() <= 1970 {
				return nil
			}
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func truncateSummary(s string) string {
	rs := []rune(s)
	if len(rs) <= summaryMaxRunes {
		return s
	}
	return string(rs[:summaryMaxRunes-3]) + "..."
}
