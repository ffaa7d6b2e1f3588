package processor

import (
	"testing"
	"time"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/source"
)

func testDef() *source.Definition {
	return &source.Definition{
		Name:        "example",
		DisplayName: "Example Blog",
		Kind:        source.KindStructured,
		URL:         "https://example.com/blog",
	}
}

func TestNormalizeResolvesRelativeLink(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := Normalize(collector.Draft{
		Title: "Hello World",
		Link:  "/blog/post-1",
	}, testDef(), now)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if a.URL != "https://example.com/blog/post-1" {
		t.Fatalf("URL = %q, want absolute link", a.URL)
	}
	if a.Source != "example" || a.SourceName != "Example Blog" {
		t.Fatalf("source fields = %q/%q", a.Source, a.SourceName)
	}
	if !a.ScrapedAt.Equal(now) {
		t.Fatalf("ScrapedAt = %v, want %v", a.ScrapedAt, now)
	}
}

func TestNormalizeRejectsUnusableDraft(t *testing.T) {
	cases := []collector.Draft{
		{Title: "", Link: "/blog/post-1"},
		{Title: "Has Title", Link: ""},
		{Title: "   <p></p>  ", Link: "/blog/post-1"},
	}
	for i, d := range cases {
		if _, err := Normalize(d, testDef(), time.Now()); err != ErrRejected {
			t.Fatalf("case %d: err = %v, want ErrRejected", i, err)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	d := collector.Draft{
		Title:   "Same Draft",
		Link:    "post-2",
		Date:    "2025-05-01",
		Summary: "some summary",
	}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	a1, err := Normalize(d, testDef(), now)
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	a2, err := Normalize(d, testDef(), now)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if a1.ID != a2.ID || a1.CanonicalURL != a2.CanonicalURL {
		t.Fatalf("outputs differ: %+v vs %+v", a1, a2)
	}
	if a1.ID != ArticleID("example", a1.CanonicalURL) {
		t.Fatalf("ID not derived from source+canonical url")
	}
}

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://Example.COM/Blog/Post/", "https://example.com/Blog/Post"},
		{"https://example.com/a?utm_source=x&utm_medium=y&id=7", "https://example.com/a?id=7"},
		{"https://example.com/a?ref=home&fbclid=abc", "https://example.com/a"},
		{"https://example.com/a#section-2", "https://example.com/a"},
		{"https://example.com/", "https://example.com/"},
	}
	for _, c := range cases {
		if got := CanonicalURL(c.in); got != c.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalURLDistinguishesMeaningfulQuery(t *testing.T) {
	a := CanonicalURL("https://example.com/a?page=1")
	b := CanonicalURL("https://example.com/a?page=2")
	if a == b {
		t.Fatalf("meaningful query params must be preserved: %q == %q", a, b)
	}
}

func TestParseDateLayouts(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2025-05-01T10:30:00Z", time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"2025-05-01", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"May 1, 2025", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"June 3rd, 2025", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)},
		{"Thu, 01 May 2025 10:30:00 +0000", time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"1 May 2025", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got := parseDate(c.raw, "")
		if got == nil {
			t.Fatalf("parseDate(%q) = nil", c.raw)
		}
		if !got.Equal(c.want) {
			t.Fatalf("parseDate(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestParseDateUnparseable(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "not a date", "1970-01-01"} {
		if got := parseDate(raw, ""); got != nil {
			t.Fatalf("parseDate(%q) = %v, want nil", raw, got)
		}
	}
}

func TestParseDateSourceLayoutFirst(t *testing.T) {
	got := parseDate("01.05.2025", "02.01.2006")
	if got == nil {
		t.Fatalf("source layout not tried")
	}
	want := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("parseDate = %v, want %v", got, want)
	}
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  hello   world  ", "hello world"},
		{"<p>hello <b>world</b></p>", "hello world"},
		{"a&amp;b &gt; c", "a&b > c"},
		{"line1\n\tline2", "line1 line2"},
	}
	for _, c := range cases {
		if got := CleanText(c.in); got != c.want {
			t.Fatalf("CleanText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncateSummary(t *testing.T) {
	long := make([]rune, 400)
	for i := range long {
		long[i] = '字'
	}
	got := truncateSummary(string(long))
	if rs := []rune(got); len(rs) != summaryMaxRunes {
		t.Fatalf("truncated length = %d, want %d", len(rs), summaryMaxRunes)
	}
	if got[len(got)-3:] != "..." {
		t.Fatalf("truncated summary must end with ellipsis")
	}

	short := "short summary"
	if truncateSummary(short) != short {
		t.Fatalf("short summary must pass through unchanged")
	}
}
