package collector

import (
	"errors"
	"net"
	"time"

	"github.com/LJTian/NewsRadar/internal/source"
	"github.com/gocolly/colly/v2"
)

const fetchMaxBodyBytes = 2 << 20 // 2MB，防止超大响应拖垮进程

// FetchResult 一次抓取的原始结果，只在单轮流水线内存活，不落库
type FetchResult struct {
	Body        []byte
	ContentType string
}

// Fetcher 负责对单个源做一次限速后的网络抓取。
// 不做重试，重试策略由上层编排器决定。
type Fetcher struct {
	defaults source.Defaults
	limiter  *RateLimiter
}

func NewFetcher(defaults source.Defaults, limiter *RateLimiter) *Fetcher {
	if limiter == nil {
		limiter = NewRateLimiter()
	}
	return &Fetcher{defaults: defaults, limiter: limiter}
}

// Fetch 对源执行一次 HTTP GET，返回原始字节或分类后的 *FetchError。
// 同一个源两次请求之间会先阻塞满 rate_limit_seconds。
func (f *Fetcher) Fetch(def *source.Definition) (*FetchResult, error) {
	f.limiter.Wait(def.Name, time.Duration(def.RateLimitSeconds)*time.Second)

	c := colly.NewCollector(
		colly.UserAgent(f.defaults.UserAgent),
		colly.MaxBodySize(fetchMaxBodyBytes),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(time.Duration(f.defaults.RequestTimeoutSeconds) * time.Second)

	var (
		result   *FetchResult
		fetchErr *FetchError
	)

	c.OnResponse(func(r *colly.Response) {
		result = &FetchResult{
			Body:        r.Body,
			ContentType: r.Headers.Get("Content-Type"),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		switch {
		case isTimeout(err):
			fetchErr = &FetchError{Kind: FetchTimeout, Err: err}
		case r != nil && r.StatusCode > 0:
			fetchErr = &FetchError{Kind: FetchHTTP, Status: r.StatusCode, Err: err}
		default:
			fetchErr = &FetchError{Kind: FetchNetwork, Err: err}
		}
	})

	if err := c.Visit(def.URL); err != nil && fetchErr == nil {
		if isTimeout(err) {
			fetchErr = &FetchError{Kind: FetchTimeout, Err: err}
		} else {
			fetchErr = &FetchError{Kind: FetchNetwork, Err: err}
		}
	}

	if fetchErr != nil {
		return nil, fetchErr
	}
	if result == nil {
		return nil, &FetchError{Kind: FetchNetwork, Err: errors.New("empty response")}
	}
	return result, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
