package pipeline

import (
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/wxscrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	rec, keep := p.Process(types.ArticleRecord{
		Title:   "  Hello   World  ",
		Summary: "\n spaced\tout ",
		Link:    " http://a ",
		Source:  " acct ",
	})
	if !keep {
		t.Fatal("record should be kept")
	}
	if rec.Title != "Hello World" {
		t.Errorf("expected trimmed title, got %q", rec.Title)
	}
	if rec.Summary != "spaced out" {
		t.Errorf("expected collapsed summary, got %q", rec.Summary)
	}
	if rec.Link != "http://a" {
		t.Errorf("expected trimmed link, got %q", rec.Link)
	}
}

func TestDefaultPipelineFillsSentinel(t *testing.T) {
	p := Default("N/A", testLogger)
	if p.Len() != 3 {
		t.Fatalf("expected 3 middleware, got %d", p.Len())
	}

	rec, keep := p.Process(types.ArticleRecord{Title: "X", Summary: "Y", Link: "http://a", Source: "   "})
	if !keep {
		t.Fatal("record should be kept")
	}
	want := types.ArticleRecord{Title: "X", Summary: "Y", Link: "http://a", Source: "N/A"}
	if rec != want {
		t.Errorf("expected %+v, got %+v", want, rec)
	}
}

func TestHTMLSanitizeMiddleware(t *testing.T) {
	m := NewHTMLSanitizeMiddleware()
	tests := []struct {
		name, in, want string
	}{
		{"highlight markers", "AI 绘画 <!--red_beg-->教程<!--red_end--> & 更多", "AI 绘画 教程 & 更多"},
		{"angle brackets kept", "Go 泛型 List<T> 用法", "Go 泛型 List<T> 用法"},
		{"entities not decoded again", "a &lt; b 表示转义", "a &lt; b 表示转义"},
		{"plain", "Hello", "Hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, keep := m.Process(types.ArticleRecord{Title: tt.in, Summary: tt.in})
			if !keep {
				t.Fatal("record should be kept")
			}
			if rec.Title != tt.want || rec.Summary != tt.want {
				t.Errorf("got title %q summary %q, want %q", rec.Title, rec.Summary, tt.want)
			}
		})
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	p := New(testLogger)
	p.Use(&RequiredFieldsMiddleware{})

	if _, keep := p.Process(types.ArticleRecord{Title: "T", Link: "http://a"}); !keep {
		t.Error("record with title and link should pass")
	}
	if _, keep := p.Process(types.ArticleRecord{Title: "T"}); keep {
		t.Error("record without link should be dropped")
	}
}

func TestSentinelKeepsRealSource(t *testing.T) {
	m := &SentinelMiddleware{Sentinel: "Unknown"}
	rec, _ := m.Process(types.ArticleRecord{Source: "机器之心"})
	if rec.Source != "机器之心" {
		t.Errorf("expected real source preserved, got %q", rec.Source)
	}
	rec, _ = m.Process(types.ArticleRecord{})
	if rec.Source != "Unknown" {
		t.Errorf("expected Unknown sentinel, got %q", rec.Source)
	}
}
