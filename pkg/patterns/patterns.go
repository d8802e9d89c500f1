// Package patterns holds the regex library used to pull structured
// fields out of report subject lines, plus the status vocabulary.
package patterns

import (
	"fmt"
	"regexp"
)

// Pattern categories. Database categories are keyed by the backup
// agent that produces the report.
const (
	CategoryProxmoxSubject = "proxmox_subject"
	CategoryHostname       = "hostname"
	CategoryCompanyDB      = "database/company"
	CategoryBarnaulDB      = "database/barnaul"
	CategoryClientDB       = "database/client"
	CategoryYandexDB       = "database/yandex"
)

// defaultPatterns lists the built-in expressions per category. Order
// is priority: within a category the first matching expression wins,
// so older subject formats must stay listed after the current one.
var defaultPatterns = map[string][]string{
	CategoryProxmoxSubject: {
		`vzdump backup status \((.+?)\): backup (successful|failed)`,
		`proxmox backup (?:server )?report for (.+?): (success|error)`,
	},
	CategoryHostname: {
		`\(([^)]+)\)`,
		`for ([^:]+):`,
	},
	CategoryCompanyDB: {
		`sr-bup (\w+) dump complete`,
		`(\w+)_dump complete`,
		`dump (\w+) complete`,
	},
	CategoryBarnaulDB: {
		`cobian brn backup (\w+), errors:(\d+)`,
	},
	CategoryClientDB: {
		`kc-1c (\w+) dump complete`,
		`rubicon-1c (\w+) dump complete`,
	},
	CategoryYandexDB: {
		`yandex (\w+) backup`,
	},
}

// Library is an ordered set of compiled patterns per category.
// Read-only after construction; safe for concurrent use.
type Library struct {
	categories map[string][]*regexp.Regexp
}

// NewLibrary builds a Library from the built-in defaults.
func NewLibrary() *Library {
	lib := &Library{categories: make(map[string][]*regexp.Regexp)}
	for category, exprs := range defaultPatterns {
		// Defaults are known-good; compile cannot fail here.
		if err := lib.set(category, exprs); err != nil {
			panic(err)
		}
	}
	return lib
}

// Override replaces the whole pattern list for one category,
// preserving the declared order. Used for config- or store-provided
// pattern sets.
func (l *Library) Override(category string, exprs []string) error {
	if len(exprs) == 0 {
		return fmt.Errorf("category %s: empty pattern list", category)
	}
	return l.set(category, exprs)
}

func (l *Library) set(category string, exprs []string) error {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return fmt.Errorf("category %s: bad pattern %q: %w", category, expr, err)
		}
		compiled = append(compiled, re)
	}
	l.categories[category] = compiled
	return nil
}

// Match tries the category's patterns in order and returns the
// submatches of the first one that hits, or nil when none match.
// Index 0 is the full match, capture groups follow.
func (l *Library) Match(category, text string) []string {
	for _, re := range l.categories[category] {
		if m := re.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

// Matches reports whether any pattern in the category hits.
func (l *Library) Matches(category, text string) bool {
	return l.Match(category, text) != nil
}

// Defaults returns the built-in expression list for a category. Used
// to seed the pattern table on first run.
func Defaults() map[string][]string {
	out := make(map[string][]string, len(defaultPatterns))
	for category, exprs := range defaultPatterns {
		cp := make([]string, len(exprs))
		copy(cp, exprs)
		out[category] = cp
	}
	return out
}
