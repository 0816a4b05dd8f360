// Package credentials resolves the upstream credential used for a single request.
package credentials

import "strings"

// Resolver picks a per-request credential over the process-wide fallback.
// The fallback is fixed at construction and never mutated, so a Resolver is
// safe for concurrent use.
type Resolver struct {
	fallback string
}

func NewResolver(fallback string) Resolver {
	return Resolver{fallback: strings.TrimSpace(fallback)}
}

// Resolve returns explicit when it is non-empty, otherwise the fallback.
// The boolean is false when neither is available.
func (r Resolver) Resolve(explicit string) (string, bool) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, true
	}

	if r.fallback != "" {
		return r.fallback, true
	}

	return "", false
}

// HasFallback reports whether a process-wide credential is configured.
func (r Resolver) HasFallback() bool {
	return r.fallback != ""
}
