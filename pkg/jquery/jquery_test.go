// pkg/jquery/jquery_test.go
package jquery

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/inquilabee/browsertabs/internal/utils"
)

// fakeRunner simulates the page side of jQuery evaluation. The present
// flag drives the probe; injecting the loader flips it when the page
// "allows" the script to load.
type fakeRunner struct {
	present     bool
	probeErr    error
	allowInject bool
	injected    bool

	calls   []string
	results map[string]any
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: make(map[string]any),
		errs:    make(map[string]error),
	}
}

func (r *fakeRunner) RunJS(js string, out any) error {
	r.calls = append(r.calls, js)

	if js == presentProbe {
		if r.probeErr != nil {
			return r.probeErr
		}
		return assign(out, r.present)
	}
	for key, err := range r.errs {
		if strings.Contains(js, key) {
			return err
		}
	}
	if strings.Contains(js, `document.createElement("script")`) {
		r.injected = true
		if r.allowInject {
			// The script tag loads before the first poll.
			r.present = true
		}
		return assign(out, false)
	}

	for key, value := range r.results {
		if strings.Contains(js, key) {
			return assign(out, value)
		}
	}
	return errors.New("unexpected script: " + js)
}

func assign(out, value any) error {
	if out == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (r *fakeRunner) callCount(substr string) int {
	count := 0
	for _, call := range r.calls {
		if strings.Contains(call, substr) {
			count++
		}
	}
	return count
}

func TestEnsureWithJQueryPresent(t *testing.T) {
	r := newFakeRunner()
	r.present = true

	jq := New(r)
	if err := jq.Ensure(); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if r.injected {
		t.Error("Ensure should not inject when jQuery is present")
	}
}

func TestEnsureInjectsWhenMissing(t *testing.T) {
	r := newFakeRunner()
	r.allowInject = true

	jq := New(r)
	if err := jq.Ensure(); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if !r.injected {
		t.Error("Ensure should inject the loader")
	}
	if r.callCount(strconv.Quote(DefaultSourceURL)) == 0 {
		t.Error("loader should reference the source URL")
	}
}

func TestEnsureSourceURLOverride(t *testing.T) {
	r := newFakeRunner()
	r.allowInject = true

	jq := New(r, WithSourceURL("https://cdn.local/jq.js"))
	if jq.Source() != "https://cdn.local/jq.js" {
		t.Errorf("Source() = %q", jq.Source())
	}
	if err := jq.Ensure(); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if r.callCount(strconv.Quote("https://cdn.local/jq.js")) == 0 {
		t.Error("loader should reference the overridden URL")
	}

	if got := New(r, WithSourceURL("")).Source(); got != DefaultSourceURL {
		t.Errorf("empty override should keep the default, got %q", got)
	}
}

func TestEnsureBlockedScript(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load-timeout test in short mode")
	}

	// The loader injects but jQuery never appears, as on a page whose
	// content security policy rejects the script host.
	r := newFakeRunner()

	jq := New(r)
	start := time.Now()
	err := jq.Ensure()
	if !utils.IsCode(err, utils.ErrCodeScriptFailed) {
		t.Errorf("expected script-failed, got %v", err)
	}
	if time.Since(start) < 4*time.Second {
		t.Error("Ensure should poll for the bounded wait before giving up")
	}
}

func TestEnsureProbeError(t *testing.T) {
	r := newFakeRunner()
	r.probeErr = errors.New("context canceled")

	err := New(r).Ensure()
	if err == nil || !strings.Contains(err.Error(), "probing for jquery") {
		t.Errorf("expected probe error, got %v", err)
	}
}

func TestEnsureLoaderError(t *testing.T) {
	r := newFakeRunner()
	r.errs["createElement"] = errors.New("evaluation blocked")

	err := New(r).Ensure()
	if !utils.IsCode(err, utils.ErrCodeScriptFailed) {
		t.Errorf("expected script-failed, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	r := newFakeRunner()
	r.present = true
	r.results["window.jQuery.fn.jquery"] = "3.7.1"

	version, err := New(r).Version()
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if version != "3.7.1" {
		t.Errorf("Version() = %q", version)
	}
}

func TestQueryDecodesNodes(t *testing.T) {
	r := newFakeRunner()
	r.present = true
	r.results[`window.jQuery("div.item")`] = []map[string]string{
		{"tag": "div", "text": "one", "html": `<div class="item">one</div>`, "value": ""},
		{"tag": "div", "text": "two", "html": `<div class="item">two</div>`, "value": ""},
	}

	nodes, err := New(r).Query("div.item")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Tag != "div" || nodes[0].Text != "one" {
		t.Errorf("node 0 = %+v", nodes[0])
	}
	if nodes[1].HTML != `<div class="item">two</div>` {
		t.Errorf("node 1 html = %q", nodes[1].HTML)
	}
}

func TestQueryNoMatches(t *testing.T) {
	r := newFakeRunner()
	r.present = true
	r.results[`window.jQuery("div.missing")`] = []map[string]string{}

	nodes, err := New(r).Query("div.missing")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(nodes))
	}
}

func TestTextValLength(t *testing.T) {
	r := newFakeRunner()
	r.present = true
	r.results[`window.jQuery("h1").text()`] = "Heading"
	r.results[`window.jQuery("input.q").val()`] = "search term"
	r.results[`window.jQuery("li").length`] = 4

	jq := New(r)

	text, err := jq.Text("h1")
	if err != nil || text != "Heading" {
		t.Errorf("Text() = %q, %v", text, err)
	}

	value, err := jq.Val("input.q")
	if err != nil || value != "search term" {
		t.Errorf("Val() = %q, %v", value, err)
	}

	length, err := jq.Length("li")
	if err != nil || length != 4 {
		t.Errorf("Length() = %d, %v", length, err)
	}

	exists, err := jq.Exists("li")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v", exists, err)
	}
}

func TestAttr(t *testing.T) {
	r := newFakeRunner()
	r.present = true
	r.results[`window.jQuery("a.link").attr("href")`] = "/home"
	r.results[`window.jQuery("a.link").attr("target")`] = nil

	jq := New(r)

	value, ok, err := jq.Attr("a.link", "href")
	if err != nil {
		t.Fatalf("Attr() error: %v", err)
	}
	if !ok || value != "/home" {
		t.Errorf("Attr(href) = %q, %v", value, ok)
	}

	_, ok, err = jq.Attr("a.link", "target")
	if err != nil {
		t.Fatalf("Attr() error: %v", err)
	}
	if ok {
		t.Error("Attr(target) should report absent")
	}
}

func TestRunRawExpression(t *testing.T) {
	r := newFakeRunner()
	r.present = true
	r.results[`window.jQuery("form").serialize()`] = "a=1&b=2"

	var serialized string
	if err := New(r).Run(`window.jQuery("form").serialize()`, &serialized); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if serialized != "a=1&b=2" {
		t.Errorf("Run() result = %q", serialized)
	}
}
