package patterns

import (
	"strings"

	"github.com/sukhanovai/monitoring-sub002/records"
)

// statusVocabulary maps known raw status phrases to the normalized
// labels. Keys are matched case-insensitively after trimming.
var statusVocabulary = map[string]string{
	"backup successful": records.StatusSuccess,
	"successful":        records.StatusSuccess,
	"ok":                records.StatusSuccess,
	"completed":         records.StatusSuccess,
	"finished":          records.StatusSuccess,
	"backup failed":     records.StatusFailed,
	"failed":            records.StatusFailed,
	"error":             records.StatusFailed,
	"errors":            records.StatusFailed,
	"warning":           records.StatusWarning,
	"partial":           records.StatusPartial,
}

// NormalizeStatus maps a raw status phrase to the normalized
// vocabulary. Phrases outside the vocabulary pass through lowercased
// rather than collapsing to "unknown", so new report wordings stay
// visible verbatim on dashboards until a mapping is added. Only a
// fully absent status yields "unknown".
func NormalizeStatus(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return records.StatusUnknown
	}
	if normalized, ok := statusVocabulary[raw]; ok {
		return normalized
	}
	return raw
}
