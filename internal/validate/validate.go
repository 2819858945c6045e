// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package validate collects field problems so a config can be checked in
// one pass and reported as a single error.
package validate

import (
	"cmp"
	"fmt"
	"mime"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Problem is one rejected field.
type Problem struct {
	Field   string
	Message string
}

func (p Problem) String() string { return p.Field + ": " + p.Message }

// Report is the error returned by Validator.Err.
type Report struct {
	Problems []Problem
}

func (r *Report) Error() string {
	parts := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		parts[i] = p.String()
	}
	return strings.Join(parts, "; ")
}

// Fields lists the rejected field names in order.
func (r *Report) Fields() []string {
	out := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		out[i] = p.Field
	}
	return out
}

// Validator is not safe for concurrent use.
type Validator struct {
	problems []Problem
}

func New() *Validator { return &Validator{} }

// Failf records a problem for field.
func (v *Validator) Failf(field, format string, args ...any) {
	v.problems = append(v.problems, Problem{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OK reports whether no problem has been recorded.
func (v *Validator) OK() bool { return len(v.problems) == 0 }

// Err returns nil or a *Report detached from v.
func (v *Validator) Err() error {
	if v.OK() {
		return nil
	}
	return &Report{Problems: slices.Clone(v.problems)}
}

// Between requires lo <= value <= hi.
func Between[T cmp.Ordered](v *Validator, field string, value, lo, hi T) {
	if value < lo || value > hi {
		v.Failf(field, "must be within [%v, %v], got %v", lo, hi, value)
	}
}

// Above requires value > floor.
func Above[T cmp.Ordered](v *Validator, field string, value, floor T) {
	if value <= floor {
		v.Failf(field, "must be greater than %v, got %v", floor, value)
	}
}

// NotEmpty rejects blank strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Failf(field, "must not be empty")
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.Failf(field, "must be one of %s, got %q", strings.Join(allowed, "|"), value)
	}
}

// URL requires an absolute URL with a host and one of schemes.
func (v *Validator) URL(field, raw string, schemes ...string) {
	u, err := url.Parse(raw)
	switch {
	case raw == "":
		v.Failf(field, "must not be empty")
	case err != nil:
		v.Failf(field, "not a URL: %v", err)
	case u.Host == "":
		v.Failf(field, "URL %q has no host", raw)
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.Failf(field, "scheme %q not in %s", u.Scheme, strings.Join(schemes, "|"))
	}
}

// ListenAddr requires host:port with a numeric port in 1..65535. The host
// may be empty.
func (v *Validator) ListenAddr(field, addr string) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		v.Failf(field, "not a listen address: %v", err)
		return
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		v.Failf(field, "port %q is not numeric", p)
		return
	}
	Between(v, field, port, 1, 65535)
}

// MediaTypes requires a non-empty list of type/subtype values.
func (v *Validator) MediaTypes(field string, values []string) {
	if len(values) == 0 {
		v.Failf(field, "needs at least one media type")
	}
	for _, s := range values {
		if mt, _, err := mime.ParseMediaType(s); err != nil || !strings.Contains(mt, "/") {
			v.Failf(field, "%q is not a media type", s)
		}
	}
}

// Directory requires path to be a directory, creating it unless mustExist.
// Relative traversal is refused.
func (v *Validator) Directory(field, path string, mustExist bool) {
	if path == "" {
		v.Failf(field, "must not be empty")
		return
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		v.Failf(field, "must not contain '..'")
		return
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if mustExist {
			v.Failf(field, "directory %s does not exist", path)
		} else if err := os.MkdirAll(path, 0o750); err != nil {
			v.Failf(field, "create %s: %v", path, err)
		}
		return
	}
	if err != nil {
		v.Failf(field, "stat %s: %v", path, err)
		return
	}
	if !info.IsDir() {
		v.Failf(field, "%s is not a directory", path)
	}
}
