package types

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// Page is the raw markup of one result page.
type Page struct {
	// Number is the 1-based result page number.
	Number int

	// URL is the address the markup was obtained from. Relative links resolve against it.
	URL string

	// Body is the raw HTML.
	Body []byte

	doc *goquery.Document
}

// NewPage creates a Page from raw markup.
func NewPage(number int, url string, body []byte) *Page {
	return &Page{Number: number, URL: url, Body: body}
}

// Document returns a parsed goquery document, lazily initializing it.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, err
	}
	p.doc = doc
	return doc, nil
}
