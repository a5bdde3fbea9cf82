package wxscrape

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/wxscrape/internal/storage"
	"github.com/IshaanNene/wxscrape/internal/types"
)

type pagesFetcher struct {
	pages  map[int]string
	closed bool
}

func (f *pagesFetcher) FetchPage(ctx context.Context, keyword string, page int) (*Page, error) {
	body, ok := f.pages[page]
	if !ok {
		return nil, &types.FetchError{Page: page, Err: errors.New("unreachable")}
	}
	return types.NewPage(page, "https://weixin.sogou.com/weixin", []byte(body)), nil
}

func (f *pagesFetcher) Close() error { f.closed = true; return nil }
func (f *pagesFetcher) Type() string { return "fake" }

const resultPage = `<html><body>
<div class="txt-box"><h3><a href="/link?url=1">First</a></h3><p class="txt-info">s1</p><div class="s-p"><a>Acct</a></div></div>
<div class="txt-box"><h3><a href="http://b">Second</a></h3><p class="txt-info">s2</p></div>
</body></html>`

func TestScrapeAndExport(t *testing.T) {
	s, err := New(WithDelay(0), WithLabel("TEST"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	f := &pagesFetcher{pages: map[int]string{1: resultPage}}
	s.UseFetcher(f)

	var lines []string
	s.OnProgress(func(l string) { lines = append(lines, l) })

	res, err := s.Scrape(context.Background(), "AI", 1)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	want := []Article{
		{Title: "First", Summary: "s1", Link: "https://weixin.sogou.com/link?url=1", Source: "Acct"},
		{Title: "Second", Summary: "s2", Link: "http://b", Source: "N/A"},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if len(lines) == 0 {
		t.Error("progress callback not called")
	}

	name, data, err := s.Export(res)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(name, "TEST_AI_") || !strings.HasSuffix(name, ".xlsx") {
		t.Errorf("name = %q", name)
	}
	got, err := storage.ReadXLSX(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("exported rows mismatch (-want +got):\n%s", diff)
	}

	if err := s.Close(); err != nil || f.closed {
		t.Errorf("Close must not close a caller-owned fetcher (err=%v closed=%v)", err, f.closed)
	}
	if st := s.Stats(); st["articles_extracted"] != 2 || st["exports_total"] != 1 {
		t.Errorf("stats = %v", st)
	}
}

func TestScrapePartialResult(t *testing.T) {
	s, err := New(WithDelay(0))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.UseFetcher(&pagesFetcher{pages: map[int]string{1: resultPage}})

	res, err := s.Scrape(context.Background(), "AI", 3)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(res.Records) != 2 || !res.StoppedEarly {
		t.Errorf("records=%d stopped=%v", len(res.Records), res.StoppedEarly)
	}
}

func TestScrapeInvalidRequest(t *testing.T) {
	s, err := New(WithDelay(0), WithMaxPages(5))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.UseFetcher(&pagesFetcher{})
	if _, err := s.Scrape(context.Background(), "AI", 6); !errors.Is(err, types.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(WithFetcher("carrier-pigeon")); err == nil {
		t.Error("expected error for unknown fetcher")
	}
	if _, err := New(WithFormat("pdf")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCSVExport(t *testing.T) {
	s, err := New(WithDelay(0), WithFormat("csv"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	name, data, err := s.Export(&Result{Request: types.SearchRequest{Keyword: "k", NumPages: 1}})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasSuffix(name, ".csv") || !strings.Contains(string(data), "Title,Summary,Link,Source") {
		t.Errorf("name=%q data=%q", name, data)
	}
	if s.ContentType() != "text/csv; charset=utf-8" {
		t.Errorf("content type = %q", s.ContentType())
	}
}
