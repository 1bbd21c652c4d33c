package logs

import (
	"encoding/json"
	"log/slog"
	"strings"

	"arista/internal/logging"
)

// Filter selects JSON log records. The zero value matches every line.
type Filter struct {
	JobID    string
	MinLevel slog.Level
	// Levelled reports whether MinLevel applies.
	Levelled bool
}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool { return f.JobID == "" && !f.Levelled }

// Match reports whether line passes the filter. Lines that are not JSON only
// pass an empty filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if f.JobID != "" {
		id, _ := record[logging.FieldJobID].(string)
		if !strings.HasPrefix(id, f.JobID) {
			return false
		}
	}
	if f.Levelled {
		level, _ := record[slog.LevelKey].(string)
		if logging.ParseLevel(level) < f.MinLevel {
			return false
		}
	}
	return true
}
