// pkg/tabs/element.go
package tabs

import (
	"context"

	"github.com/chromedp/chromedp/kb"

	"github.com/inquilabee/browsertabs/internal/scripts"
)

// Element is a live handle to one DOM node, addressed as the index-th
// match of its selector. The handle survives DOM mutations as long as the
// selector still matches at that position; when the node vanishes,
// operations fail with a script or selector error.
type Element struct {
	tab      *Tab
	selector string
	index    int
	ref      NodeRef
}

// Selector returns the CSS selector this element was queried with.
func (e *Element) Selector() string { return e.selector }

// Index returns the element's position among the selector's matches.
func (e *Element) Index() int { return e.index }

// TagName returns the lowercase tag name recorded when the element was
// queried.
func (e *Element) TagName() string { return e.ref.Tag }

// Text returns the rendered text of the element.
func (e *Element) Text() (string, error) {
	var text string
	err := e.tab.RunJS(scripts.ElementText(e.selector, e.index), &text)
	return text, err
}

// HTML returns the outer HTML of the element.
func (e *Element) HTML() (string, error) {
	var html string
	err := e.tab.RunJS(scripts.ElementHTML(e.selector, e.index), &html)
	return html, err
}

// Value returns the form value of the element.
func (e *Element) Value() (string, error) {
	var value string
	err := e.tab.RunJS(scripts.ElementValue(e.selector, e.index), &value)
	return value, err
}

// Attr returns the value of the named attribute and whether it is present.
// An attribute set to the empty string reports present with an empty value.
func (e *Element) Attr(name string) (string, bool, error) {
	var present bool
	if err := e.tab.RunJS(scripts.ElementHasAttr(e.selector, e.index, name), &present); err != nil {
		return "", false, err
	}
	if !present {
		return "", false, nil
	}

	var value string
	if err := e.tab.RunJS(scripts.ElementAttr(e.selector, e.index, name), &value); err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetAttr sets the named attribute on the element.
func (e *Element) SetAttr(name, value string) error {
	return e.tab.RunJS(scripts.ElementSetAttr(e.selector, e.index, name, value), nil)
}

// Click clicks the element, walking the same strategy ladder as Tab.Click.
func (e *Element) Click(opts ...ClickOption) error {
	return e.tab.do(func(ctx context.Context, b *Browser) error {
		return e.tab.clickLocked(ctx, b, e.selector, e.index, opts)
	})
}

// SendKeys types text into the element.
func (e *Element) SendKeys(text string) error {
	return e.tab.do(func(ctx context.Context, b *Browser) error {
		return b.driver.SendKeys(ctx, e.tab.id, e.selector, e.index, text)
	})
}

// Submit sends a return key to the element, submitting the form it
// belongs to.
func (e *Element) Submit() error {
	return e.tab.do(func(ctx context.Context, b *Browser) error {
		return b.driver.SendKeys(ctx, e.tab.id, e.selector, e.index, kb.Enter)
	})
}

// Clear empties the element's value.
func (e *Element) Clear() error {
	return e.tab.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Clear(ctx, e.tab.id, e.selector, e.index)
	})
}

// Center returns the element's center in viewport coordinates.
func (e *Element) Center() (x, y float64, err error) {
	err = e.tab.do(func(ctx context.Context, b *Browser) error {
		var cerr error
		x, y, cerr = b.driver.NodeCenter(ctx, e.tab.id, e.selector, e.index)
		return cerr
	})
	return x, y, err
}

// CSS queries descendants of every node the element's selector matches,
// not just this one node; the sub-selector is joined onto the parent
// selector with a descendant combinator.
func (e *Element) CSS(selector string) ([]*Element, error) {
	return e.tab.CSS(e.selector + " " + selector)
}
