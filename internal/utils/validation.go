package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Pre-compiled regex patterns for better performance
var (
	// Anything a querySelector call could plausibly accept. Deliberately
	// loose: the page's selector engine has the final say, this only
	// rejects input that is clearly not a selector.
	selectorShapePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\[\].:_#>+~()"',*^$|=-]+$`)

	// Security validation patterns
	javascriptProtocolPattern = regexp.MustCompile(`(?i)javascript:`)
	cssExpressionPattern      = regexp.MustCompile(`(?i)expression\s*\(`)
)

// MaxSelectorLength defines the maximum allowed length for CSS selectors
const MaxSelectorLength = 1000

// ValidationError represents a structured validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

// ValidateSelector checks that a string is usable as a CSS selector before
// it is handed to the browser. Syntax errors the shape check misses still
// surface as driver errors.
func ValidateSelector(selector string) error {
	selector = SanitizeSelector(selector)
	if selector == "" {
		return ValidationError{Field: "selector", Value: selector, Message: "selector is empty"}
	}
	if len(selector) > MaxSelectorLength {
		return ValidationError{Field: "selector", Value: TruncateString(selector, 50), Message: "selector exceeds maximum length"}
	}
	if javascriptProtocolPattern.MatchString(selector) || cssExpressionPattern.MatchString(selector) {
		return ValidationError{Field: "selector", Value: selector, Message: "selector contains script content"}
	}
	if !selectorShapePattern.MatchString(selector) {
		return ValidationError{Field: "selector", Value: selector, Message: "selector contains invalid characters"}
	}
	return nil
}

// ValidateURL checks that a string parses as an absolute http(s) URL.
// about:blank is accepted because blank tabs are part of normal operation.
func ValidateURL(rawURL string) error {
	if rawURL == "about:blank" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ValidationError{Field: "url", Value: rawURL, Message: "not a parseable URL"}
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ValidationError{Field: "url", Value: rawURL, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return ValidationError{Field: "url", Value: rawURL, Message: "missing host"}
	}
	return nil
}
