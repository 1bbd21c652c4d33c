// Package deps verifies the external programs a run depends on.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"arista/internal/services"
)

// Requirement defines an external program arista relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Requirements lists the programs needed by the given engine backend.
// Drapto runs in-process but still shells out to ffmpeg and ffprobe.
func Requirements(backend, ffmpeg, ffprobe string) []Requirement {
	reqs := []Requirement{
		{Name: "FFprobe", Command: ffprobe, Description: "Inspects sources before encoding"},
		{Name: "FFmpeg", Command: ffmpeg, Description: "Encodes each pass"},
	}
	if strings.EqualFold(strings.TrimSpace(backend), "drapto") {
		reqs[1].Description = "Used by Drapto for analysis and encoding"
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Verify fails with a configuration error naming the first missing
// required program.
func Verify(statuses []Status) error {
	for _, s := range statuses {
		if s.Available || s.Optional {
			continue
		}
		return services.Wrap(services.ErrConfiguration, "deps", "check",
			fmt.Sprintf("%s is required: %s", s.Name, s.Detail), nil)
	}
	return nil
}
