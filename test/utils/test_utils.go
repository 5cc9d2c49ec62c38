// test/utils/test_utils.go
package utils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
)

// TestServer wraps httptest.Server with request bookkeeping
type TestServer struct {
	*httptest.Server
	RequestCount int
	LastRequest  *http.Request
}

// NewTestServer creates a test server serving the given HTML on every path
func NewTestServer(html string) *TestServer {
	ts := &TestServer{}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.RequestCount++
		ts.LastRequest = r
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	}))

	return ts
}

// NewTestServerWithHandler creates a test server with a custom handler
func NewTestServerWithHandler(handler http.HandlerFunc) *TestServer {
	ts := &TestServer{}
	ts.Server = httptest.NewServer(handler)
	return ts
}

// PageTemplates provides common HTML pages for browser tests
type PageTemplates struct{}

// Landing returns a small page with headings, paragraphs and a list
func (p PageTemplates) Landing() string {
	return `
	<html>
		<head><title>Landing Page</title></head>
		<body>
			<h1>Welcome</h1>
			<p class="intro">This page exists for browser tests.</p>
			<p>Second paragraph with filler text.</p>
			<ul class="items">
				<li class="item">Item 1</li>
				<li class="item">Item 2</li>
				<li class="item">Item 3</li>
			</ul>
			<a href="/next" id="next-link">Next page</a>
		</body>
	</html>
	`
}

// Form returns a page with a search form for input tests
func (p PageTemplates) Form() string {
	return `
	<html>
		<head><title>Form Page</title></head>
		<body>
			<form action="/search">
				<input type="text" name="q" class="query">
				<button type="submit">Search</button>
			</form>
		</body>
	</html>
	`
}

// TallPage returns a page with enough content to scroll
func (p PageTemplates) TallPage() string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Tall Page</title></head><body><h1>Top</h1>`)
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&b, `<p class="row">Row %d</p>`, i)
	}
	b.WriteString(`<div id="bottom">Bottom</div></body></html>`)
	return b.String()
}

// GetPageTemplates returns a PageTemplates instance
func GetPageTemplates() PageTemplates {
	return PageTemplates{}
}

// CleanString removes extra whitespace and normalizes strings for comparison
func CleanString(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
