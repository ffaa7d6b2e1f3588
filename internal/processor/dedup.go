package processor

import (
	"strings"
	"unicode"
)

// DefaultLookback 次级标题查重的默认回看窗口（每个源最近 N 篇）
const DefaultLookback = 300

// Index 存储层已有文章的索引快照。查重只读快照，写入由编排器负责，
// 以保证"检查 + 追加"在一把锁里完成
type Index interface {
	// HasID 身份索引里是否已有该 ID
	HasID(id string) bool
	// HasURL 是否已有同源同规范链接的文章
	HasURL(source, canonicalURL string) bool
	// RecentTitles 该源回看窗口内已存文章的规范化标题
	RecentTitles(source string) []string
}

// IsDuplicate 判断文章是否与库中已有文章重复。
// 一级：ID / (源, 规范链接) 命中；
// 二级：同源且规范化标题与窗口内某篇完全一致（防御同一篇文章
// 换了 URL 形式被再次抓到）。纯函数，不改任何状态
func IsDuplicate(a *Article, idx Index) bool {
	if idx.HasID(a.ID) {
		return true
	}
	if idx.HasURL(a.Source, a.CanonicalURL) {
		return true
	}

	title := NormalizeTitle(a.Title)
	if title == "" {
		return false
	}
	for _, t := range idx.RecentTitles(a.Source) {
		if t == title {
			return true
		}
	}
	return false
}

// NormalizeTitle 标题查重用的规范形式：小写、去标点符号、折叠空白
func NormalizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
		// 标点与符号直接丢弃
	}
	return strings.TrimSpace(b.String())
}
