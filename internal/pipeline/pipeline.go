package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/wxscrape/internal/types"
)

// Middleware normalises a record. Returning keep=false drops the record.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process returns the (possibly rewritten) record and whether to keep it.
	Process(rec types.ArticleRecord) (types.ArticleRecord, bool)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the pipeline every run uses: sanitize, trim, then fill the
// source sentinel.
func Default(sentinel string, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(&TrimMiddleware{})
	p.Use(&SentinelMiddleware{Sentinel: sentinel})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec types.ArticleRecord) (types.ArticleRecord, bool) {
	current := rec
	for _, mw := range p.middlewares {
		next, keep := mw.Process(current)
		if !keep {
			p.logger.Debug("record dropped", "stage", mw.Name(), "title", rec.Title)
			return types.ArticleRecord{}, false
		}
		current = next
	}
	return current, true
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware collapses whitespace in every field.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec types.ArticleRecord) (types.ArticleRecord, bool) {
	rec.Title = strings.Join(strings.Fields(rec.Title), " ")
	rec.Summary = strings.Join(strings.Fields(rec.Summary), " ")
	rec.Link = strings.TrimSpace(rec.Link)
	rec.Source = strings.Join(strings.Fields(rec.Source), " ")
	return rec, true
}

// SentinelMiddleware guarantees Source is never blank.
type SentinelMiddleware struct {
	Sentinel string
}

func (m *SentinelMiddleware) Name() string { return "sentinel" }

func (m *SentinelMiddleware) Process(rec types.ArticleRecord) (types.ArticleRecord, bool) {
	if strings.TrimSpace(rec.Source) == "" {
		rec.Source = m.Sentinel
		if rec.Source == "" {
			rec.Source = types.DefaultSentinel
		}
	}
	return rec, true
}

// RequiredFieldsMiddleware drops records whose title or link is blank.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec types.ArticleRecord) (types.ArticleRecord, bool) {
	if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Link) == "" {
		return rec, false
	}
	return rec, true
}
