// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package net canonicalizes and redacts the URLs of remote services.
package net

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var errNotServiceURL = errors.New("must be an absolute http(s) url without credentials, query or fragment")

// SanitizeURL drops credentials and the query so a URL can be logged.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}

// NormalizeBaseURL returns the canonical form of a service base URL: lower-case
// scheme, ASCII lower-case host, no trailing slash.
func NormalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("base url %q: %w", SanitizeURL(raw), errNotServiceURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("base url %q: %w", SanitizeURL(raw), errNotServiceURL)
	}
	if u.Host == "" || u.User != nil || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return "", fmt.Errorf("base url %q: %w", SanitizeURL(raw), errNotServiceURL)
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return "", fmt.Errorf("base url %q: %w", SanitizeURL(raw), err)
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}

// canonicalHost lower-cases IP literals and converts names to punycode.
func canonicalHost(host string) (string, error) {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", errors.New("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	if strings.ContainsAny(host, "%:") {
		return "", fmt.Errorf("host %q is not a valid name", host)
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("host %q: %w", host, err)
	}
	return strings.ToLower(ascii), nil
}
