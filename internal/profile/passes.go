package profile

import (
	"strconv"
	"strings"
)

// ThreadsPlaceholder is replaced by the configured thread count in pass options.
const ThreadsPlaceholder = "%(threads)s"

// Param is a single key=value encoder option. A bare flag has an empty Value.
type Param struct {
	Key   string
	Value string
}

// ParsePass splits a pass string into ordered options. Tokens without an
// equals sign become flags with an empty value.
func ParsePass(pass string) []Param {
	fields := strings.Fields(pass)
	params := make([]Param, 0, len(fields))
	for _, field := range fields {
		key, value, _ := strings.Cut(field, "=")
		if key == "" {
			continue
		}
		params = append(params, Param{Key: key, Value: value})
	}
	return params
}

// FormatPass joins options back into a pass string.
func FormatPass(params []Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Value == "" {
			parts = append(parts, p.Key)
			continue
		}
		parts = append(parts, p.Key+"="+p.Value)
	}
	return strings.Join(parts, " ")
}

// RemoveParam returns a copy of passes with key dropped from every pass.
func RemoveParam(passes []string, key string) []string {
	out := make([]string, len(passes))
	for i, pass := range passes {
		params := ParsePass(pass)
		kept := params[:0]
		for _, p := range params {
			if p.Key != key {
				kept = append(kept, p)
			}
		}
		out[i] = FormatPass(kept)
	}
	return out
}

// ExpandPass substitutes the threads placeholder.
func ExpandPass(pass string, threads int) string {
	return strings.ReplaceAll(pass, ThreadsPlaceholder, strconv.Itoa(max(threads, 1)))
}

// AudioPassIndex maps an overall pass to the audio option set used for it.
// The index counts down from the final video pass, so the final pass uses
// the first audio entry. Results are clamped into the audio pass list.
func AudioPassIndex(videoPasses, audioPasses, pass int) int {
	if audioPasses <= 0 {
		return -1
	}
	idx := videoPasses - pass - 1
	if videoPasses == 0 {
		idx = pass
	}
	return min(max(idx, 0), audioPasses-1)
}
