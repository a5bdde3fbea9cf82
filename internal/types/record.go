package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSentinel is the placeholder used when an optional field is absent.
const DefaultSentinel = "N/A"

// ArticleRecord is one article extracted from a result page.
type ArticleRecord struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
	Source  string `json:"source"`
}

// Columns returns the fixed export column order.
func Columns() []string {
	return []string{"Title", "Summary", "Link", "Source"}
}

// Row returns the record values in Columns order.
func (r ArticleRecord) Row() []string {
	return []string{r.Title, r.Summary, r.Link, r.Source}
}

// RecordFromRow builds a record from values in Columns order.
// Missing trailing cells are treated as empty.
func RecordFromRow(row []string) ArticleRecord {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return ArticleRecord{
		Title:   cell(0),
		Summary: cell(1),
		Link:    cell(2),
		Source:  cell(3),
	}
}

// SearchRequest carries the per-run parameters supplied by the user.
type SearchRequest struct {
	Keyword  string `json:"keyword"`
	NumPages int    `json:"num_pages"`
}

// Validate checks the request against the allowed page bound.
func (r SearchRequest) Validate(maxPages int) error {
	if strings.TrimSpace(r.Keyword) == "" {
		return fmt.Errorf("%w: keyword must not be empty", ErrInvalidRequest)
	}
	if r.NumPages < 1 || r.NumPages > maxPages {
		return fmt.Errorf("%w: num_pages must be between 1 and %d, got %d", ErrInvalidRequest, maxPages, r.NumPages)
	}
	return nil
}

// RunResult is the outcome of one run.
type RunResult struct {
	Request      SearchRequest   `json:"request"`
	Records      []ArticleRecord `json:"records"`
	Progress     []string        `json:"progress"`
	PagesFetched int             `json:"pages_fetched"`
	StoppedEarly bool            `json:"stopped_early"`
	StopReason   string          `json:"stop_reason,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
