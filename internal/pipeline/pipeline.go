package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/processor"
	"github.com/LJTian/NewsRadar/internal/source"
	"github.com/LJTian/NewsRadar/internal/storage"
)

const (
	defaultWorkers = 4
	// 传输类失败只重试一次，退避后仍失败就把该源标记为本轮失败
	retryBackoff = 2 * time.Second
)

// Store 流水线需要的最小存储接口
type Store interface {
	Append(*processor.Article) error
}

// Index 查重索引快照：只读判断 + 接受后补录
type Index interface {
	processor.Index
	Add(*processor.Article)
}

// IndexProvider 每轮开始时提供一份新的索引快照
type IndexProvider func() (Index, error)

// FetchFunc / ParseFunc 以函数注入，测试可以用桩替换真实网络与解析
type FetchFunc func(def *source.Definition) (*collector.FetchResult, error)
type ParseFunc func(res *collector.FetchResult, def *source.Definition) ([]collector.Draft, error)

// SourceResult 单个源在一轮里的结果
type SourceResult struct {
	Source     string `json:"source"`
	Fetched    int    `json:"fetched"`
	Parsed     int    `json:"parsed"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Rejected   int    `json:"rejected"`
	Err        string `json:"error,omitempty"`
}

// RunSummary 一轮采集的汇总，只返回给调用方/日志，不落库
type RunSummary struct {
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
	Results   []SourceResult `json:"results"`
	Accepted  int            `json:"accepted"`
	Err       string         `json:"error,omitempty"`
}

// Orchestrator 驱动 抓取→解析→规范化→查重→入库 的整条流水线。
// 源之间并发（有界工作池），单个源失败只记录原因，不会中断整轮
type Orchestrator struct {
	cfg     *source.Config
	fetch   FetchFunc
	parse   ParseFunc
	store   Store
	indexes IndexProvider

	workers    int
	runTimeout time.Duration
	now        func() time.Time

	// runMu 串行化整轮执行：cron 触发与手动触发不会交叠
	runMu sync.Mutex
	// acceptMu 保护"查重判断 + 入库 + 补录索引"这段检查后写入的临界区
	acceptMu sync.Mutex
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(cfg *source.Config, fetch FetchFunc, parse ParseFunc, store Store, indexes IndexProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		fetch:      fetch,
		parse:      parse,
		store:      store,
		indexes:    indexes,
		workers:    defaultWorkers,
		runTimeout: 10 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOnce 对所有配置的源执行一轮采集。总是走到 Completed 并返回汇总，
// 哪怕所有源都失败；只有索引快照加载失败（存储不可用）会整轮报错
func (o *Orchestrator) RunOnce(ctx context.Context) *RunSummary {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := o.now()
	summary := &RunSummary{StartedAt: start}

	ctx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	idx, err := o.indexes()
	if err != nil {
		summary.Err = fmt.Sprintf("load dedup index: %v", err)
		summary.Duration = o.now().Sub(start)
		return summary
	}

	type indexedResult struct {
		i   int
		res SourceResult
	}

	n := len(o.cfg.Sources)
	results := make([]SourceResult, n)
	done := make(chan indexedResult, n)
	sem := make(chan struct{}, o.workers)

	for i := range o.cfg.Sources {
		go func(i int) {
			sem <- struct{}{}
			defer func() { <-sem }()
			done <- indexedResult{i: i, res: o.processSource(ctx, &o.cfg.Sources[i], idx)}
		}(i)
	}

	finished := make(map[int]bool, n)
	for len(finished) < n {
		select {
		case d := <-done:
			if !finished[d.i] {
				results[d.i] = d.res
				finished[d.i] = true
			}
		case <-ctx.Done():
			// 超时：还没回来的源一律标记失败，迟到的结果直接丢弃
			for i := range o.cfg.Sources {
				if !finished[i] {
					results[i] = SourceResult{
						Source: o.cfg.Sources[i].Name,
						Err:    "run timeout exceeded",
					}
					finished[i] = true
				}
			}
		}
	}

	summary.Results = results
	for _, r := range results {
		summary.Accepted += r.Accepted
	}
	summary.Duration = o.now().Sub(start)
	return summary
}

func (o *Orchestrator) processSource(ctx context.Context, def *source.Definition, idx Index) SourceResult {
	res := SourceResult{Source: def.Name}

	raw, err := o.fetchWithRetry(ctx, def)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Fetched = 1

	drafts, err := o.parse(raw, def)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Parsed = len(drafts)

	now := o.now()
	for _, d := range drafts {
		article, err := processor.Normalize(d, def, now)
		if err != nil {
			// 缺标题/缺链接的草稿按篇丢弃计数
			res.Rejected++
			continue
		}

		switch o.accept(ctx, article, idx) {
		case acceptStored:
			res.Accepted++
		case acceptDuplicate:
			res.Duplicates++
		case acceptAborted:
			res.Err = "run timeout exceeded"
			return res
		case acceptFailed:
			res.Err = fmt.Sprintf("store article %s: append failed", article.ID[:8])
			return res
		}
	}

	return res
}

// fetchWithRetry 传输失败时做一次有界重试；解析失败不重试
func (o *Orchestrator) fetchWithRetry(ctx context.Context, def *source.Definition) (*collector.FetchResult, error) {
	raw, err := o.fetch(def)
	if err == nil {
		return raw, nil
	}

	var fe *collector.FetchError
	if !errors.As(err, &fe) {
		return nil, err
	}

	log.Printf("fetch %s failed (%s), retrying once...", def.Name, fe.Kind)
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("run timeout exceeded")
	case <-time.After(retryBackoff):
	}

	return o.fetch(def)
}

type acceptOutcome int

const (
	acceptStored acceptOutcome = iota
	acceptDuplicate
	acceptAborted
	acceptFailed
)

// accept 在一把锁里完成 查重判断→入库→补录索引，
// 并发的源 worker 不会对同一身份各自看到"不重复"
func (o *Orchestrator) accept(ctx context.Context, a *processor.Article, idx Index) acceptOutcome {
	o.acceptMu.Lock()
	defer o.acceptMu.Unlock()

	// 整轮已超时的话丢弃部分结果，不再写库
	if ctx.Err() != nil {
		return acceptAborted
	}

	if processor.IsDuplicate(a, idx) {
		return acceptDuplicate
	}

	if err := o.store.Append(a); err != nil {
		// 存储层兜底冲突同样按重复计
		if errors.Is(err, storage.ErrConflict) {
			return acceptDuplicate
		}
		log.Printf("append article from %s: %v", a.Source, err)
		return acceptFailed
	}

	idx.Add(a)
	return acceptStored
}

// Log 把汇总按源打一行，方便运维从日志里发现悄悄坏掉的源
func (s *RunSummary) Log() {
	for _, r := range s.Results {
		if r.Err != "" {
			log.Printf("source %s failed: %s", r.Source, r.Err)
			continue
		}
		log.Printf("source %s done, parsed=%d accepted=%d duplicates=%d rejected=%d",
			r.Source, r.Parsed, r.Accepted, r.Duplicates, r.Rejected)
	}
	log.Printf("collect run done, accepted=%d duration=%s", s.Accepted, s.Duration.Round(time.Millisecond))
}
