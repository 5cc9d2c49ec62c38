// internal/scripts/scripts.go

// Package scripts holds the JavaScript snippets evaluated inside pages.
// They live in one place so page-side behavior is reviewable at a glance.
package scripts

import (
	"fmt"
	"strconv"
)

// Expressions with a stable result shape, passed to Evaluate as-is.
const (
	// PageHeight resolves to the full scrollable height of the document.
	PageHeight = `document.documentElement.scrollHeight`

	// DocumentComplete resolves to true once the document has fully loaded.
	DocumentComplete = `document.readyState === "complete"`

	// DocumentInteractive resolves to true once the DOM is usable, even if
	// subresources are still loading.
	DocumentInteractive = `document.readyState === "interactive" || document.readyState === "complete"`

	// LocationHref resolves to the page URL as the page sees it.
	LocationHref = `location.href`

	// PageTitle resolves to the document title.
	PageTitle = `document.title`

	// OuterHTML resolves to the serialized document.
	OuterHTML = `document.documentElement.outerHTML`

	// StopLoad aborts in-flight loading.
	StopLoad = `window.stop()`

	// OpenBlankTab asks the page to open a fresh blank tab.
	OpenBlankTab = `window.open("about:blank")`

	// WebdriverFlag resolves to true when the browser advertises automation.
	WebdriverFlag = `navigator.webdriver === true`

	// Visible resolves to true in the tab currently presented to the user.
	Visible = `document.visibilityState === "visible"`
)

// ScrollTo builds a script scrolling the viewport to an absolute position.
func ScrollTo(x, y int64) string {
	return fmt.Sprintf(`window.scrollTo(%d, %d)`, x, y)
}

// ScrollBy builds a script scrolling the viewport down by dy pixels
// (negative dy scrolls up).
func ScrollBy(dy int64) string {
	return fmt.Sprintf(`window.scrollBy(0, %d)`, dy)
}

// OpenTab builds a script opening url in a new tab.
func OpenTab(url string) string {
	return fmt.Sprintf(`window.open(%s)`, strconv.Quote(url))
}

// URLContains builds a poll expression that turns true once the page URL
// contains fragment.
func URLContains(fragment string) string {
	return fmt.Sprintf(`location.href.includes(%s)`, strconv.Quote(fragment))
}

// Element scripts address nodes as querySelectorAll results, so an element
// handle stays valid as selector plus index. A vanished node turns into a
// page-side TypeError, which Evaluate surfaces as an error.

// ElementText resolves to the rendered text of the element.
func ElementText(selector string, index int) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].innerText`, strconv.Quote(selector), index)
}

// ElementHTML resolves to the outer HTML of the element.
func ElementHTML(selector string, index int) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].outerHTML`, strconv.Quote(selector), index)
}

// ElementTagName resolves to the lowercase tag name of the element.
func ElementTagName(selector string, index int) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].tagName.toLowerCase()`, strconv.Quote(selector), index)
}

// ElementAttr resolves to the attribute value, or null when absent.
func ElementAttr(selector string, index int, name string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].getAttribute(%s)`,
		strconv.Quote(selector), index, strconv.Quote(name))
}

// ElementHasAttr resolves to whether the attribute is present.
func ElementHasAttr(selector string, index int, name string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].hasAttribute(%s)`,
		strconv.Quote(selector), index, strconv.Quote(name))
}

// ElementValue resolves to the form value of the element.
func ElementValue(selector string, index int) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].value`, strconv.Quote(selector), index)
}

// ElementClick clicks the element from inside the page.
func ElementClick(selector string, index int) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].click()`, strconv.Quote(selector), index)
}

// ElementSetAttr sets an attribute on the element.
func ElementSetAttr(selector string, index int, name, value string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].setAttribute(%s, %s)`,
		strconv.Quote(selector), index, strconv.Quote(name), strconv.Quote(value))
}

// ElementCount resolves to the number of nodes matching selector.
func ElementCount(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, strconv.Quote(selector))
}
