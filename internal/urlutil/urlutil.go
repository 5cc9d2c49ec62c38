// internal/urlutil/urlutil.go

// Package urlutil answers "which site is this URL on" questions using the
// public suffix list, so example.co.uk and sub.example.co.uk compare equal
// while example.org stays distinct.
package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Hostname extracts the lowercased hostname of rawURL.
func Hostname(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return host, nil
}

// RegistrableDomain returns the eTLD+1 of the URL's hostname. IP addresses
// and single-label hosts (localhost, bare intranet names) are returned
// unchanged.
func RegistrableDomain(rawURL string) (string, error) {
	host, err := Hostname(rawURL)
	if err != nil {
		return "", err
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Hosts the suffix list cannot split fall back to the hostname.
		return host, nil
	}
	return domain, nil
}

// SameSite reports whether two URLs share a registrable domain.
func SameSite(a, b string) bool {
	da, err := RegistrableDomain(a)
	if err != nil {
		return false
	}
	db, err := RegistrableDomain(b)
	if err != nil {
		return false
	}
	return da == db
}
