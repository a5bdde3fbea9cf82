package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig(endpoint string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Search.Endpoint = endpoint
	return cfg
}

func TestSearchURL(t *testing.T) {
	cfg := config.DefaultConfig()
	got, err := SearchURL(&cfg.Search, "AI绘画", 3)
	if err != nil {
		t.Fatalf("search url: %v", err)
	}
	if !strings.HasPrefix(got, "https://weixin.sogou.com/weixin?") {
		t.Errorf("unexpected base: %s", got)
	}
	for _, want := range []string{"type=2", "page=3", "query=AI%E7%BB%98%E7%94%BB"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %s", want, got)
		}
	}
}

func TestHTTPFetcherQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "2" || q.Get("query") != "golang" || q.Get("page") != "2" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "missing UA", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`<div class="txt-box"><h3><a href="/x">T</a></h3></div>`))
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(testConfig(srv.URL+"/weixin"), testLogger)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	defer f.Close()

	page, err := f.FetchPage(context.Background(), "golang", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.Number != 2 {
		t.Errorf("expected page 2, got %d", page.Number)
	}
	if !strings.Contains(string(page.Body), "txt-box") {
		t.Errorf("unexpected body: %s", page.Body)
	}
	if !strings.HasPrefix(page.URL, srv.URL) {
		t.Errorf("expected page URL on test server, got %s", page.URL)
	}
}

func TestHTTPFetcherNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "antispider", http.StatusForbidden)
	}))
	defer srv.Close()

	f, _ := NewHTTPFetcher(testConfig(srv.URL), testLogger)
	defer f.Close()

	_, err := f.FetchPage(context.Background(), "golang", 1)
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", fe.StatusCode)
	}
	if fe.Page != 1 {
		t.Errorf("expected page 1, got %d", fe.Page)
	}
}

func TestHTTPFetcherNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	f, _ := NewHTTPFetcher(testConfig(endpoint), testLogger)
	defer f.Close()

	_, err := f.FetchPage(context.Background(), "golang", 1)
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestHTTPFetcherDecompression(t *testing.T) {
	const body = `<div class="txt-box">compressed</div>`

	tests := []struct {
		encoding string
		encode   func([]byte) []byte
	}{
		{"gzip", func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write(b)
			zw.Close()
			return buf.Bytes()
		}},
		{"br", func(b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			bw.Write(b)
			bw.Close()
			return buf.Bytes()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Write(tt.encode([]byte(body)))
			}))
			defer srv.Close()

			f, _ := NewHTTPFetcher(testConfig(srv.URL), testLogger)
			defer f.Close()

			page, err := f.FetchPage(context.Background(), "golang", 1)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if string(page.Body) != body {
				t.Errorf("expected %q, got %q", body, page.Body)
			}
		})
	}
}

func TestNewSelectsHTTP(t *testing.T) {
	f, err := New(config.DefaultConfig(), testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()
	if f.Type() != "http" {
		t.Errorf("expected http fetcher, got %s", f.Type())
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Fetcher.Type = "carrier-pigeon"
	if _, err := New(cfg, testLogger); err == nil {
		t.Fatal("expected error for unknown fetcher type")
	}
}

func TestHTTPFetcherRejectsOversizedBody(t *testing.T) {
	body := strings.Repeat("x", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL + "/weixin")
	cfg.Fetcher.MaxBodySize = 63
	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer f.Close()

	_, err = f.FetchPage(context.Background(), "AI", 1)
	var fe *types.FetchError
	if !errors.As(err, &fe) || !errors.Is(err, types.ErrBodyTooLarge) {
		t.Fatalf("error = %v, want FetchError wrapping ErrBodyTooLarge", err)
	}

	cfg.Fetcher.MaxBodySize = 64
	exact, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer exact.Close()
	page, err := exact.FetchPage(context.Background(), "AI", 1)
	if err != nil {
		t.Fatalf("body at the limit should pass: %v", err)
	}
	if len(page.Body) != 64 {
		t.Errorf("body length = %d, want 64", len(page.Body))
	}
}
