// pkg/jquery/jquery.go

// Package jquery runs jQuery expressions inside a page through a script
// runner, injecting a copy of jQuery when the page has no usable one.
// Results come back as plain data snapshots; live element interaction
// stays with the tab layer.
package jquery

import (
	"fmt"
	"strconv"
	"time"

	"github.com/inquilabee/browsertabs/internal/utils"
)

const (
	// DefaultSourceURL is where Ensure loads jQuery from when the page has
	// no usable copy.
	DefaultSourceURL = "https://code.jquery.com/jquery-3.7.1.min.js"

	pollInterval = 100 * time.Millisecond
	loadTimeout  = 5 * time.Second
)

// presentProbe resolves to whether the page has a usable jQuery.
const presentProbe = `typeof window.jQuery === "function" && typeof window.jQuery.fn === "object"`

// Runner evaluates JavaScript inside a page and decodes the result.
// A nil out discards the result.
type Runner interface {
	RunJS(js string, out any) error
}

// JQuery runs jQuery expressions in the page behind a Runner. Every
// operation re-checks that the page still has jQuery, so a handle stays
// usable across navigations.
type JQuery struct {
	runner Runner
	source string
}

// Option configures a JQuery handle.
type Option func(*JQuery)

// WithSourceURL overrides where jQuery is loaded from, for pages whose
// content security policy only allows certain script hosts.
func WithSourceURL(url string) Option {
	return func(j *JQuery) {
		if url != "" {
			j.source = url
		}
	}
}

// New creates a handle running jQuery expressions through runner. No page
// traffic happens until the first operation.
func New(runner Runner, opts ...Option) *JQuery {
	j := &JQuery{
		runner: runner,
		source: DefaultSourceURL,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Source returns where Ensure loads jQuery from.
func (j *JQuery) Source() string { return j.source }

func loaderScript(src string) string {
	return fmt.Sprintf(`(function() {
	if (typeof window.jQuery === "function") { return true; }
	var s = document.createElement("script");
	s.src = %s;
	document.head.appendChild(s);
	return false;
})()`, strconv.Quote(src))
}

// Ensure makes sure the page has a usable jQuery, injecting one from the
// source URL when needed. Pages whose content security policy blocks the
// script never finish loading it; that surfaces as a script error after a
// bounded wait.
func (j *JQuery) Ensure() error {
	var present bool
	if err := j.runner.RunJS(presentProbe, &present); err != nil {
		return fmt.Errorf("probing for jquery: %w", err)
	}
	if present {
		return nil
	}

	var loaded bool
	if err := j.runner.RunJS(loaderScript(j.source), &loaded); err != nil {
		return utils.WrapError(err, utils.ErrCodeScriptFailed, "failed to inject jquery loader")
	}
	if loaded {
		return nil
	}

	deadline := time.Now().Add(loadTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		if err := j.runner.RunJS(presentProbe, &present); err != nil {
			return fmt.Errorf("probing for jquery: %w", err)
		}
		if present {
			return nil
		}
	}
	return utils.NewError(utils.ErrCodeScriptFailed, "jquery did not load; the page may forbid external scripts").
		WithContext("source", j.source).
		Build()
}

// Version returns the version of the jQuery the page is using.
func (j *JQuery) Version() (string, error) {
	if err := j.Ensure(); err != nil {
		return "", err
	}
	var version string
	if err := j.runner.RunJS(`window.jQuery.fn.jquery`, &version); err != nil {
		return "", fmt.Errorf("reading jquery version: %w", err)
	}
	return version, nil
}

// Node is one matched element projected to plain data.
type Node struct {
	Tag   string `json:"tag"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
	Value string `json:"value"`
}

func queryScript(selector string) string {
	return fmt.Sprintf(`window.jQuery(%s).map(function() {
	var el = window.jQuery(this);
	var v = el.val();
	return {
		tag: this.tagName.toLowerCase(),
		text: el.text(),
		html: this.outerHTML,
		value: v === undefined || v === null ? "" : String(v)
	};
}).get()`, strconv.Quote(selector))
}

// Query returns the elements matching selector in document order. No
// matches is an empty slice, not an error.
func (j *JQuery) Query(selector string) ([]Node, error) {
	if err := j.Ensure(); err != nil {
		return nil, err
	}
	var nodes []Node
	if err := j.runner.RunJS(queryScript(selector), &nodes); err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}
	return nodes, nil
}

// Text returns the combined text of the elements matching selector.
func (j *JQuery) Text(selector string) (string, error) {
	if err := j.Ensure(); err != nil {
		return "", err
	}
	var text string
	js := fmt.Sprintf(`window.jQuery(%s).text()`, strconv.Quote(selector))
	if err := j.runner.RunJS(js, &text); err != nil {
		return "", fmt.Errorf("reading text of %q: %w", selector, err)
	}
	return text, nil
}

// Val returns the form value of the first element matching selector,
// empty when nothing matches.
func (j *JQuery) Val(selector string) (string, error) {
	if err := j.Ensure(); err != nil {
		return "", err
	}
	var value string
	js := fmt.Sprintf(`(function(v) { return v === undefined || v === null ? "" : String(v); })(window.jQuery(%s).val())`,
		strconv.Quote(selector))
	if err := j.runner.RunJS(js, &value); err != nil {
		return "", fmt.Errorf("reading value of %q: %w", selector, err)
	}
	return value, nil
}

// Attr returns the named attribute of the first element matching selector
// and whether it is present.
func (j *JQuery) Attr(selector, name string) (string, bool, error) {
	if err := j.Ensure(); err != nil {
		return "", false, err
	}
	var value *string
	js := fmt.Sprintf(`(function(a) { return a === undefined ? null : a; })(window.jQuery(%s).attr(%s))`,
		strconv.Quote(selector), strconv.Quote(name))
	if err := j.runner.RunJS(js, &value); err != nil {
		return "", false, fmt.Errorf("reading attribute %q of %q: %w", name, selector, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// Length returns how many elements match selector.
func (j *JQuery) Length(selector string) (int, error) {
	if err := j.Ensure(); err != nil {
		return 0, err
	}
	var length int
	js := fmt.Sprintf(`window.jQuery(%s).length`, strconv.Quote(selector))
	if err := j.runner.RunJS(js, &length); err != nil {
		return 0, fmt.Errorf("counting %q: %w", selector, err)
	}
	return length, nil
}

// Exists reports whether any element matches selector.
func (j *JQuery) Exists(selector string) (bool, error) {
	length, err := j.Length(selector)
	if err != nil {
		return false, err
	}
	return length > 0, nil
}

// Run evaluates a raw jQuery expression and decodes the result into out.
// Use it for calls the typed helpers do not cover.
func (j *JQuery) Run(expr string, out any) error {
	if err := j.Ensure(); err != nil {
		return err
	}
	if err := j.runner.RunJS(expr, out); err != nil {
		return fmt.Errorf("running jquery expression: %w", err)
	}
	return nil
}
