package parser

import (
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/types"
)

const (
	titleSelector   = "h3"
	linkSelector    = "a"
	summarySelector = "p.txt-info"
	sourceXPath     = `.//div[@class="s-p"]`
	sourceLinkXPath = `.//a`
)

// Attempt is the outcome of extracting one article container: either a
// record or an *types.ExtractionError.
type Attempt struct {
	Index  int
	Record types.ArticleRecord
	Err    error
}

// Extractor pulls article records out of a result page.
type Extractor struct {
	containerSelector string
	sentinel          string
	logger            *slog.Logger
}

// NewExtractor creates an extractor for the configured result page layout.
func NewExtractor(cfg *config.SearchConfig, logger *slog.Logger) *Extractor {
	sentinel := cfg.Sentinel
	if sentinel == "" {
		sentinel = types.DefaultSentinel
	}
	return &Extractor{
		containerSelector: cfg.ContainerSelector,
		sentinel:          sentinel,
		logger:            logger.With("component", "extractor"),
	}
}

// Extract locates the article containers on the page and returns a lazy
// sequence with one Attempt per container, in document order. Containers are
// only examined as the consumer pulls them. A page without any container
// yields an *types.ExtractionError wrapping types.ErrNoContainers.
func (e *Extractor) Extract(page *types.Page) (iter.Seq[Attempt], error) {
	doc, err := page.Document()
	if err != nil {
		return nil, &types.ExtractionError{Page: page.Number, Index: -1, Err: err}
	}

	containers := doc.Find(e.containerSelector)
	if containers.Length() == 0 {
		return nil, &types.ExtractionError{
			Page:  page.Number,
			Index: -1,
			Err:   fmt.Errorf("%w (selector=%q)", types.ErrNoContainers, e.containerSelector),
		}
	}

	base, err := url.Parse(page.URL)
	if err != nil || page.URL == "" {
		base = nil
	}

	e.logger.Debug("containers located", "page", page.Number, "count", containers.Length())

	return func(yield func(Attempt) bool) {
		for i := range containers.Nodes {
			rec, err := e.extractOne(containers.Eq(i), base, page.Number, i)
			if !yield(Attempt{Index: i, Record: rec, Err: err}) {
				return
			}
		}
	}, nil
}

// extractOne extracts the four fields of a single container.
func (e *Extractor) extractOne(sel *goquery.Selection, base *url.URL, pageNum, index int) (types.ArticleRecord, error) {
	fail := func(field string, err error) (types.ArticleRecord, error) {
		return types.ArticleRecord{}, &types.ExtractionError{Page: pageNum, Index: index, Field: field, Err: err}
	}

	heading := sel.Find(titleSelector).First()
	if heading.Length() == 0 {
		return fail("title", fmt.Errorf("%w: no %s element", types.ErrMissingField, titleSelector))
	}
	title := collapse(heading.Text())
	if title == "" {
		return fail("title", fmt.Errorf("%w: empty %s text", types.ErrMissingField, titleSelector))
	}

	href, ok := heading.Find(linkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return fail("link", fmt.Errorf("%w: no href on title anchor", types.ErrMissingField))
	}
	link, err := resolve(base, href)
	if err != nil {
		return fail("link", err)
	}

	summaryNode := sel.Find(summarySelector).First()
	if summaryNode.Length() == 0 {
		return fail("summary", fmt.Errorf("%w: no %s element", types.ErrMissingField, summarySelector))
	}

	return types.ArticleRecord{
		Title:   title,
		Summary: collapse(summaryNode.Text()),
		Link:    link,
		Source:  e.extractSource(sel.Nodes[0]),
	}, nil
}

// extractSource prefers the account anchor inside the source block, falls back
// to the block's own text, and finally to the sentinel.
func (e *Extractor) extractSource(container *html.Node) string {
	block, err := htmlquery.Query(container, sourceXPath)
	if err != nil {
		e.logger.Warn("invalid xpath", "selector", sourceXPath, "error", err)
		return e.sentinel
	}
	if block == nil {
		return e.sentinel
	}

	if anchor, err := htmlquery.Query(block, sourceLinkXPath); err == nil && anchor != nil {
		if text := collapse(htmlquery.InnerText(anchor)); text != "" {
			return text
		}
	}
	if text := collapse(htmlquery.InnerText(block)); text != "" {
		return text
	}
	return e.sentinel
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("malformed href %q: %w", href, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// collapse trims and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
