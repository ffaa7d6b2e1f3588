package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/processor"
	"github.com/LJTian/NewsRadar/internal/source"
	"github.com/LJTian/NewsRadar/internal/storage"
)

// fakeStore 内存版存储，记录 Append 过的文章并模拟唯一键冲突
type fakeStore struct {
	mu       sync.Mutex
	articles map[string]*processor.Article
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{articles: make(map[string]*processor.Article)}
}

func (f *fakeStore) Append(a *processor.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.articles[a.ID]; ok {
		return storage.ErrConflict
	}
	f.articles[a.ID] = a
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.articles)
}

func testConfig(names ...string) *source.Config {
	cfg := &source.Config{}
	for _, n := range names {
		cfg.Sources = append(cfg.Sources, source.Definition{
			Name:        n,
			DisplayName: n,
			Kind:        source.KindStructured,
			URL:         "https://" + n + ".example.com",
			MaxArticles: 50,
		})
	}
	return cfg
}

func stubFetch(def *source.Definition) (*collector.FetchResult, error) {
	return &collector.FetchResult{Body: []byte("stub")}, nil
}

// draftsBySource 固定草稿表的解析桩
func draftsBySource(m map[string][]collector.Draft) ParseFunc {
	return func(res *collector.FetchResult, def *source.Definition) ([]collector.Draft, error) {
		return m[def.Name], nil
	}
}

func sharedIndex(idx Index) IndexProvider {
	return func() (Index, error) { return idx, nil }
}

func TestRunOnceCounts(t *testing.T) {
	cfg := testConfig("alpha")
	drafts := map[string][]collector.Draft{
		"alpha": {
			{Title: "Post One", Link: "/p1"},
			{Title: "Post Two", Link: "/p2"},
			{Title: "", Link: "/p3"}, // 缺标题，应被拒绝
		},
	}
	store := newFakeStore()
	idx := storage.NewMemIndex(0)

	o := New(cfg, stubFetch, draftsBySource(drafts), store, sharedIndex(idx))
	summary := o.RunOnce(context.Background())

	if summary.Err != "" {
		t.Fatalf("summary.Err = %q", summary.Err)
	}
	if len(summary.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(summary.Results))
	}

	r := summary.Results[0]
	if r.Source != "alpha" || r.Fetched != 1 || r.Parsed != 3 {
		t.Fatalf("result = %+v", r)
	}
	if r.Accepted != 2 || r.Rejected != 1 || r.Duplicates != 0 {
		t.Fatalf("counts = accepted %d rejected %d duplicates %d", r.Accepted, r.Rejected, r.Duplicates)
	}
	if summary.Accepted != 2 || store.count() != 2 {
		t.Fatalf("accepted = %d, stored = %d", summary.Accepted, store.count())
	}
}

func TestRunOnceSecondRunIsAllDuplicates(t *testing.T) {
	cfg := testConfig("alpha")
	drafts := map[string][]collector.Draft{
		"alpha": {
			{Title: "Post One", Link: "/p1"},
			{Title: "Post Two", Link: "/p2"},
			{Title: "Post Three", Link: "/p3"},
		},
	}
	store := newFakeStore()
	idx := storage.NewMemIndex(0)

	o := New(cfg, stubFetch, draftsBySource(drafts), store, sharedIndex(idx))

	first := o.RunOnce(context.Background())
	if first.Accepted != 3 {
		t.Fatalf("first run accepted = %d, want 3", first.Accepted)
	}

	second := o.RunOnce(context.Background())
	if second.Accepted != 0 {
		t.Fatalf("second run accepted = %d, want 0", second.Accepted)
	}
	if r := second.Results[0]; r.Duplicates != 3 {
		t.Fatalf("second run duplicates = %d, want 3", r.Duplicates)
	}
	if store.count() != 3 {
		t.Fatalf("stored = %d, want 3", store.count())
	}
}

func TestRunOnceGracefulDegradation(t *testing.T) {
	cfg := testConfig("good", "bad")
	drafts := map[string][]collector.Draft{
		"good": {{Title: "Only Post", Link: "/p1"}},
	}
	store := newFakeStore()
	idx := storage.NewMemIndex(0)

	fetch := func(def *source.Definition) (*collector.FetchResult, error) {
		if def.Name == "bad" {
			// 非传输类错误，不触发重试
			return nil, errors.New("certificate verify failed")
		}
		return &collector.FetchResult{Body: []byte("stub")}, nil
	}

	o := New(cfg, fetch, draftsBySource(drafts), store, sharedIndex(idx))
	summary := o.RunOnce(context.Background())

	if summary.Err != "" {
		t.Fatalf("one bad source must not fail the run: %q", summary.Err)
	}

	byName := map[string]SourceResult{}
	for _, r := range summary.Results {
		byName[r.Source] = r
	}
	if byName["bad"].Err == "" {
		t.Fatalf("bad source must carry its error")
	}
	if byName["good"].Accepted != 1 {
		t.Fatalf("good source accepted = %d, want 1", byName["good"].Accepted)
	}
}

func TestRunOnceIndexLoadFailure(t *testing.T) {
	cfg := testConfig("alpha")
	o := New(cfg, stubFetch, draftsBySource(nil), newFakeStore(),
		func() (Index, error) { return nil, errors.New("connection refused") })

	summary := o.RunOnce(context.Background())
	if summary.Err == "" {
		t.Fatalf("index load failure must fail the whole run")
	}
	if len(summary.Results) != 0 {
		t.Fatalf("no source should have been processed, got %d results", len(summary.Results))
	}
}

func TestFetchRetriesTransportErrorOnce(t *testing.T) {
	cfg := testConfig("flaky")
	drafts := map[string][]collector.Draft{
		"flaky": {{Title: "Recovered Post", Link: "/p1"}},
	}
	store := newFakeStore()
	idx := storage.NewMemIndex(0)

	var calls int
	var mu sync.Mutex
	fetch := func(def *source.Definition) (*collector.FetchResult, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, &collector.FetchError{Kind: collector.FetchNetwork, Err: errors.New("reset by peer")}
		}
		return &collector.FetchResult{Body: []byte("stub")}, nil
	}

	o := New(cfg, fetch, draftsBySource(drafts), store, sharedIndex(idx))
	summary := o.RunOnce(context.Background())

	if calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls)
	}
	if summary.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1 after retry", summary.Accepted)
	}
}

func TestStoreConflictCountsAsDuplicate(t *testing.T) {
	cfg := testConfig("alpha")
	drafts := map[string][]collector.Draft{
		"alpha": {{Title: "Post One", Link: "/p1"}},
	}
	store := newFakeStore()
	store.failWith = storage.ErrConflict
	idx := storage.NewMemIndex(0)

	o := New(cfg, stubFetch, draftsBySource(drafts), store, sharedIndex(idx))
	summary := o.RunOnce(context.Background())

	r := summary.Results[0]
	if r.Err != "" {
		t.Fatalf("conflict must not be an error: %q", r.Err)
	}
	if r.Duplicates != 1 || r.Accepted != 0 {
		t.Fatalf("counts = %+v, want conflict counted as duplicate", r)
	}
}

func TestRunOnceTimeoutMarksUnfinishedSources(t *testing.T) {
	cfg := testConfig("slow")
	store := newFakeStore()
	idx := storage.NewMemIndex(0)

	fetch := func(def *source.Definition) (*collector.FetchResult, error) {
		time.Sleep(300 * time.Millisecond)
		return &collector.FetchResult{Body: []byte("stub")}, nil
	}

	o := New(cfg, fetch, draftsBySource(nil), store, sharedIndex(idx),
		WithRunTimeout(50*time.Millisecond))
	summary := o.RunOnce(context.Background())

	if len(summary.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(summary.Results))
	}
	if summary.Results[0].Err != "run timeout exceeded" {
		t.Fatalf("slow source err = %q, want timeout marker", summary.Results[0].Err)
	}
}

func TestRunsAreSerialized(t *testing.T) {
	cfg := testConfig("alpha")
	store := newFakeStore()
	idx := storage.NewMemIndex(0)

	var active, maxActive int
	var mu sync.Mutex
	fetch := func(def *source.Definition) (*collector.FetchResult, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return &collector.FetchResult{Body: []byte("stub")}, nil
	}

	o := New(cfg, fetch, draftsBySource(nil), store, sharedIndex(idx))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("concurrent runs overlapped, max active fetches = %d", maxActive)
	}
}
