package pipeline

import (
	"regexp"
	"strings"

	"github.com/IshaanNene/wxscrape/internal/types"
)

// HTMLSanitizeMiddleware removes the highlight comment markers
// (<!--red_beg-->, <!--red_end-->) that the portal leaves in escaped form
// inside some titles and summaries. Field text is otherwise left as extracted.
type HTMLSanitizeMiddleware struct {
	markerRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		markerRe: regexp.MustCompile(`<!--.*?-->`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(rec types.ArticleRecord) (types.ArticleRecord, bool) {
	rec.Title = m.clean(rec.Title)
	rec.Summary = m.clean(rec.Summary)
	rec.Source = m.clean(rec.Source)
	return rec, true
}

func (m *HTMLSanitizeMiddleware) clean(s string) string {
	if !strings.Contains(s, "<!--") {
		return s
	}
	return strings.Join(strings.Fields(m.markerRe.ReplaceAllString(s, "")), " ")
}
