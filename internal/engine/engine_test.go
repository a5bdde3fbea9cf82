package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeFetcher serves canned bodies per page number and records every call.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[int]string
	errs   map[int]error
	calls  []int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, keyword string, page int) (*types.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &types.FetchError{Page: page, Err: err}
	}
	if err, ok := f.errs[page]; ok {
		return nil, err
	}
	body, ok := f.bodies[page]
	if !ok {
		return nil, &types.FetchError{Page: page, StatusCode: 404, Err: errors.New("no such page")}
	}
	return types.NewPage(page, fmt.Sprintf("https://weixin.sogou.com/weixin?type=2&page=%d", page), []byte(body)), nil
}

func article(title, link, source string) string {
	src := ""
	if source != "" {
		src = `<div class="s-p"><a class="account">` + source + `</a></div>`
	}
	return `<div class="txt-box"><h3><a href="` + link + `">` + title + `</a></h3>` +
		`<p class="txt-info">` + title + ` summary</p>` + src + `</div>`
}

func resultsPage(articles ...string) string {
	return "<html><body><ul>" + strings.Join(articles, "") + "</ul></body></html>"
}

func newTestEngine(f Fetcher) *Engine {
	cfg := config.DefaultConfig()
	cfg.Search.PageDelay = 0
	e := New(cfg, testLogger)
	e.SetFetcher(f)
	return e
}

func titles(recs []types.ArticleRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func TestRunPreservesPageAndDiscoveryOrder(t *testing.T) {
	f := &fakeFetcher{bodies: map[int]string{
		1: resultsPage(article("a", "http://a", "S"), article("b", "http://b", "S")),
		2: resultsPage(article("c", "http://c", "S")),
	}}
	res, err := newTestEngine(f).Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, titles(res.Records)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if res.StoppedEarly {
		t.Errorf("run stopped early: %s", res.StopReason)
	}
	if res.PagesFetched != 2 {
		t.Errorf("pages fetched = %d, want 2", res.PagesFetched)
	}
}

func TestRunSingleArticleWithoutSource(t *testing.T) {
	f := &fakeFetcher{bodies: map[int]string{
		1: `<html><body><div class="txt-box"><h3><a href="http://a">X</a></h3><p class="txt-info">Y</p></div></body></html>`,
	}}
	res, err := newTestEngine(f).Run(context.Background(), types.SearchRequest{Keyword: "AI绘画", NumPages: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []types.ArticleRecord{{Title: "X", Summary: "Y", Link: "http://a", Source: "N/A"}}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSkipsPageWithoutContainers(t *testing.T) {
	f := &fakeFetcher{bodies: map[int]string{
		1: resultsPage(article("one", "http://1", "S")),
		2: "<html><body><p>nothing</p></body></html>",
		3: resultsPage(article("three", "http://3", "S")),
	}}
	e := newTestEngine(f)
	res, err := e.Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 3})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"one", "three"}, titles(res.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if res.StoppedEarly {
		t.Error("a page without containers must not stop the run")
	}
	if got := e.Metrics().PagesSkipped.Load(); got != 1 {
		t.Errorf("pages skipped = %d, want 1", got)
	}
	if !containsLine(res.Progress, "Error finding articles on page 2") {
		t.Errorf("missing page-level progress line in %q", res.Progress)
	}
}

func TestRunFetchFailureKeepsEarlierRecords(t *testing.T) {
	f := &fakeFetcher{
		bodies: map[int]string{
			1: resultsPage(article("p1", "http://1", "S")),
			2: resultsPage(article("p2", "http://2", "S")),
			4: resultsPage(article("p4", "http://4", "S")),
		},
		errs: map[int]error{3: &types.FetchError{Page: 3, StatusCode: 503, Err: errors.New("unavailable")}},
	}
	res, err := newTestEngine(f).Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 5})
	if err != nil {
		t.Fatalf("fetch failure must not surface as an error: %v", err)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, titles(res.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if !res.StoppedEarly || !strings.Contains(res.StopReason, "Error fetching page 3") {
		t.Errorf("stop = %v %q, want early stop at page 3", res.StoppedEarly, res.StopReason)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, f.calls); diff != "" {
		t.Errorf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRunEndOfResults(t *testing.T) {
	f := &fakeFetcher{
		bodies: map[int]string{1: resultsPage(article("only", "http://o", "S"))},
		errs:   map[int]error{2: fmt.Errorf("page 2: %w", types.ErrEndOfResults)},
	}
	e := newTestEngine(f)
	res, err := e.Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("records = %d, want 1", len(res.Records))
	}
	if !res.StoppedEarly {
		t.Error("expected early stop")
	}
	if got := e.Metrics().PagesFailed.Load(); got != 0 {
		t.Errorf("end of results counted as failure: %d", got)
	}
}

func TestRunIsolatesBrokenArticles(t *testing.T) {
	broken := `<div class="txt-box"><p class="txt-info">no heading</p></div>`
	f := &fakeFetcher{bodies: map[int]string{
		1: resultsPage(article("ok1", "http://1", "S"), broken, article("ok2", "http://2", "")),
	}}
	e := newTestEngine(f)
	res, err := e.Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"ok1", "ok2"}, titles(res.Records)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if res.Records[1].Source != types.DefaultSentinel {
		t.Errorf("source = %q, want sentinel", res.Records[1].Source)
	}
	if !containsLine(res.Progress, "Error extracting article 2 on page 1") {
		t.Errorf("missing article error line in %q", res.Progress)
	}
	if got := e.Metrics().ArticlesError.Load(); got != 1 {
		t.Errorf("article errors = %d, want 1", got)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	f := &fakeFetcher{}
	e := newTestEngine(f)
	for _, req := range []types.SearchRequest{
		{Keyword: "", NumPages: 1},
		{Keyword: "AI", NumPages: 0},
		{Keyword: "AI", NumPages: 21},
	} {
		if _, err := e.Run(context.Background(), req); !errors.Is(err, types.ErrInvalidRequest) {
			t.Errorf("Run(%+v) error = %v, want ErrInvalidRequest", req, err)
		}
	}
	if len(f.calls) != 0 {
		t.Errorf("invalid requests must not fetch, got calls %v", f.calls)
	}
}

func TestRunWithoutFetcher(t *testing.T) {
	e := New(config.DefaultConfig(), testLogger)
	if _, err := e.Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 1}); !errors.Is(err, ErrNoFetcher) {
		t.Errorf("error = %v, want ErrNoFetcher", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	f := &fakeFetcher{bodies: map[int]string{1: resultsPage(article("a", "http://a", "S"))}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestEngine(f).Run(ctx, types.SearchRequest{Keyword: "AI", NumPages: 3})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.StoppedEarly || len(res.Records) != 0 {
		t.Errorf("got stopped=%v records=%d, want early stop with no records", res.StoppedEarly, len(res.Records))
	}
}

func TestRunPacesPages(t *testing.T) {
	f := &fakeFetcher{bodies: map[int]string{
		1: resultsPage(article("a", "http://a", "S")),
		2: resultsPage(article("b", "http://b", "S")),
		3: resultsPage(article("c", "http://c", "S")),
	}}
	e := newTestEngine(f)
	e.cfg.Search.PageDelay = 40 * time.Millisecond

	start := time.Now()
	if _, err := e.Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 3}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("three pages took %v, expected at least two delays", elapsed)
	}
}

func TestRunProgressCallback(t *testing.T) {
	f := &fakeFetcher{bodies: map[int]string{1: resultsPage(article("a", "http://a", "S"), article("b", "http://b", "S"))}}
	e := newTestEngine(f)
	var lines []string
	e.OnProgress(func(line string) { lines = append(lines, line) })

	res, err := e.Run(context.Background(), types.SearchRequest{Keyword: "AI", NumPages: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff(res.Progress, lines); diff != "" {
		t.Errorf("callback lines differ from result progress (-result +callback):\n%s", diff)
	}
	for _, want := range []string{"Fetching page 1 of 1", "Processing article 1 on page 1", "Processing article 2 on page 1"} {
		if !containsLine(lines, want) {
			t.Errorf("missing progress line %q in %q", want, lines)
		}
	}
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	if acc.Len() != 0 || len(acc.All()) != 0 {
		t.Fatal("new accumulator should be empty")
	}
	acc.Append(types.ArticleRecord{Title: "a"})
	acc.Append(types.ArticleRecord{Title: "b"})

	all := acc.All()
	all[0].Title = "mutated"
	if diff := cmp.Diff([]string{"a", "b"}, titles(acc.All())); diff != "" {
		t.Errorf("accumulator mismatch (-want +got):\n%s", diff)
	}
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestRunKeepsDecodedFieldText(t *testing.T) {
	f := &fakeFetcher{bodies: map[int]string{
		1: `<html><body><div class="txt-box"><h3><a href="http://a">Go 泛型 List&lt;T&gt; 用法</a></h3>` +
			`<p class="txt-info">a &amp;lt; b 表示转义</p></div></body></html>`,
	}}
	res, err := newTestEngine(f).Run(context.Background(), types.SearchRequest{Keyword: "Go", NumPages: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []types.ArticleRecord{{Title: "Go 泛型 List<T> 用法", Summary: "a &lt; b 表示转义", Link: "http://a", Source: "N/A"}}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}
