package storage

import (
	"sync"

	"github.com/LJTian/NewsRadar/internal/processor"
)

// MemIndex 查重用的内存索引快照，实现 processor.Index。
// 一轮采集开始时从库里加载一次，本轮新接受的文章通过 Add 实时补进来，
// 保证同一轮内后续的查重决策能看到之前的写入
type MemIndex struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	urls   map[string]struct{} // key: source + "\n" + canonicalURL
	titles map[string][]string // 按源，规范化标题，最新在前
	// lookback 标题窗口上限，超出后最旧的被挤出
	lookback int
}

func NewMemIndex(lookback int) *MemIndex {
	if lookback <= 0 {
		lookback = processor.DefaultLookback
	}
	return &MemIndex{
		ids:      make(map[string]struct{}),
		urls:     make(map[string]struct{}),
		titles:   make(map[string][]string),
		lookback: lookback,
	}
}

func urlKey(source, canonicalURL string) string {
	return source + "\n" + canonicalURL
}

func (m *MemIndex) HasID(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[id]
	return ok
}

func (m *MemIndex) HasURL(source, canonicalURL string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.urls[urlKey(source, canonicalURL)]
	return ok
}

func (m *MemIndex) RecentTitles(source string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.titles[source]
}

// Add 把一篇刚接受的文章并入快照
func (m *MemIndex) Add(a *processor.Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[a.ID] = struct{}{}
	m.urls[urlKey(a.Source, a.CanonicalURL)] = struct{}{}
	m.addTitle(a.Source, processor.NormalizeTitle(a.Title))
}

func (m *MemIndex) addTitle(source, title string) {
	if title == "" {
		return
	}
	list := append([]string{title}, m.titles[source]...)
	if len(list) > m.lookback {
		list = list[:m.lookback]
	}
	m.titles[source] = list
}

// DedupIndex 从库里加载查重索引快照。ID 与链接全量加载，
// 标题只取每个源最近 lookback 篇，保证查询开销不随库量线性膨胀
func (s *Store) DedupIndex(lookback int) (*MemIndex, error) {
	idx := NewMemIndex(lookback)

	var rows []struct {
		ID           string
		Source       string
		CanonicalURL string
		Title        string
	}
	if err := s.DB.Model(&Article{}).
		Select("id, source, canonical_url, title").
		Order("scraped_at DESC").Order("id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	// rows 按抓取时间倒序，标题窗口从最新往旧填，填满即止
	for _, r := range rows {
		idx.ids[r.ID] = struct{}{}
		idx.urls[urlKey(r.Source, r.CanonicalURL)] = struct{}{}
		if len(idx.titles[r.Source]) < idx.lookback {
			if t := processor.NormalizeTitle(r.Title); t != "" {
				idx.titles[r.Source] = append(idx.titles[r.Source], t)
			}
		}
	}

	return idx, nil
}
