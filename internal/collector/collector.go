package collector

import "fmt"

// Draft 解析阶段产出的未校验文章，所有字段都可能为空；
// 链接可能是相对路径，日期还是原始文本，规范化在 processor 里做
type Draft struct {
	Title   string
	Link    string
	Date    string
	Summary string
}

// FetchError 分类后的抓取失败，kind 取 timeout / http / network
type FetchError struct {
	Kind   string
	Status int
	Err    error
}

const (
	FetchTimeout = "timeout"
	FetchHTTP    = "http"
	FetchNetwork = "network"
)

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTP {
		return fmt.Sprintf("fetch failed: http status %d", e.Status)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError 内容解析失败（空响应、畸形 HTML/XML 等），按源记录，不中断整轮采集
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
