package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// IsValidURL checks if a string is a valid absolute URL
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// CleanFileName removes invalid characters from a filename
func CleanFileName(name string) string {
	re := regexp.MustCompile(`[<>:"/\\|?*]`)
	cleaned := re.ReplaceAllString(name, "_")

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, ".")

	if len(cleaned) > 200 {
		cleaned = cleaned[:200]
	}

	if cleaned == "" {
		cleaned = "page"
	}

	return cleaned
}

// ScreenshotFileName generates a screenshot filename from a page URL
// and the current timestamp.
func ScreenshotFileName(pageURL string) string {
	host := "page"
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		host = u.Host
	}
	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.png", CleanFileName(host), timestamp)
}

// TruncateString truncates a string to a maximum length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// SanitizeSelector trims a CSS selector and collapses internal whitespace
func SanitizeSelector(selector string) string {
	selector = strings.TrimSpace(selector)
	selector = regexp.MustCompile(`\s+`).ReplaceAllString(selector, " ")

	return selector
}
