package common

import (
	"fmt"
	"strings"
)

// ContainsAny reports whether the lowercased haystack contains any of
// the needles. Handlers use it for their cheap indicator tests, so it
// must stay allocation-light and never touch I/O.
func ContainsAny(haystack string, needles ...string) bool {
	haystack = strings.ToLower(haystack)
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// AfterLastColon returns the text following the last ':' in s, trimmed
// and lowercased. Returns "" when s has no colon.
func AfterLastColon(s string) string {
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s[idx+1:]))
}

// StripDomain cuts a fully qualified host name at the first dot.
func StripDomain(host string) string {
	if idx := strings.Index(host, "."); idx != -1 {
		return host[:idx]
	}
	return host
}

// Truncate shortens s to at most n bytes, appending an ellipsis marker
// when anything was cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// FindStringWithoutMarkers finds the text between two markers,
// excluding the markers themselves. An empty endMarker defaults to the
// line break style of the text.
func FindStringWithoutMarkers(text, startMarker, endMarker string) string {
	startIdx := strings.Index(text, startMarker)
	if startIdx == -1 {
		return ""
	}

	remaining := text[startIdx+len(startMarker):]

	if endMarker == "" {
		endMarker = "\n"
		if strings.Contains(text, "\r\n") {
			endMarker = "\r\n"
		}
	}

	endIdx := strings.Index(remaining, endMarker)
	if endIdx == -1 {
		return strings.TrimSpace(remaining)
	}

	return strings.TrimSpace(remaining[:endIdx])
}

// GetNonEmptyLineAfter finds the first non-empty line after a marker.
func GetNonEmptyLineAfter(text, marker string) string {
	startIdx := strings.Index(text, marker)
	if startIdx == -1 {
		return ""
	}

	remaining := text[startIdx+len(marker):]
	for _, line := range strings.Split(remaining, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}

	return ""
}

// ParseInt converts a string to an integer, rejecting empty input.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}

	return n, nil
}

// UnwrapForwardedSubject removes forwarding prefixes (Fwd:, FW:, Re:)
// so a forwarded report matches the same subject grammar as the
// original delivery.
func UnwrapForwardedSubject(subject string) string {
	for {
		trimmed := strings.TrimSpace(subject)
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, "fwd:"):
			subject = trimmed[4:]
		case strings.HasPrefix(lower, "fw:"), strings.HasPrefix(lower, "re:"):
			subject = trimmed[3:]
		default:
			return trimmed
		}
	}
}
