package scripts

import (
	"strings"
	"testing"
)

// TestSelectorQuoting tests that selectors with quotes embed safely
func TestSelectorQuoting(t *testing.T) {
	js := ElementText(`a[href="https://example.com"]`, 0)
	want := `document.querySelectorAll("a[href=\"https://example.com\"]")[0].innerText`
	if js != want {
		t.Errorf("ElementText = %q, want %q", js, want)
	}

	js = OpenTab(`https://example.com/?q="x"`)
	if !strings.Contains(js, `\"x\"`) {
		t.Errorf("OpenTab did not escape quotes: %q", js)
	}
}

// TestScrollBuilders tests scroll script generation
func TestScrollBuilders(t *testing.T) {
	if got := ScrollTo(0, 1200); got != `window.scrollTo(0, 1200)` {
		t.Errorf("ScrollTo = %q", got)
	}
	if got := ScrollBy(-150); got != `window.scrollBy(0, -150)` {
		t.Errorf("ScrollBy = %q", got)
	}
}

// TestURLContains tests the poll expression builder
func TestURLContains(t *testing.T) {
	js := URLContains("dashboard")
	if js != `location.href.includes("dashboard")` {
		t.Errorf("URLContains = %q", js)
	}
}
