// Package outputpath derives collision-free output file names.
package outputpath

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var specialSchemes = []string{"dvd://", "v4l://", "v4l2://"}

var trailingNumber = regexp.MustCompile(`^(.*?)(\d+)$`)

// Reserved tracks paths that queued jobs will create. A nil Reserved is
// treated as empty.
type Reserved map[string]struct{}

// Add records path as taken.
func (r Reserved) Add(path string) { r[filepath.Clean(path)] = struct{}{} }

// Has reports whether path is taken.
func (r Reserved) Has(path string) bool {
	_, ok := r[filepath.Clean(path)]
	return ok
}

// Generate builds name[-suffix].extension from input, next to the input for
// files and in the working directory for device locators. When the name is
// taken on disk or in reserved, a trailing number is added or incremented
// until it is free.
func Generate(input, extension, suffix string, reserved Reserved) string {
	return GenerateIn("", input, extension, suffix, reserved)
}

// GenerateIn is Generate with the result placed in dir when dir is not empty.
func GenerateIn(dir, input, extension, suffix string, reserved Reserved) string {
	name := stem(input)
	if dir != "" {
		name = filepath.Join(dir, filepath.Base(name))
	}
	if suffix != "" {
		name += "-" + suffix
	}
	ext := strings.TrimPrefix(extension, ".")
	candidate := join(name, ext)
	for taken(candidate, reserved) {
		name = increment(name)
		candidate = join(name, ext)
	}
	return candidate
}

func stem(input string) string {
	for _, scheme := range specialSchemes {
		if strings.HasPrefix(input, scheme) {
			device, _, _ := strings.Cut(strings.TrimPrefix(input, scheme), "@")
			return filepath.Base(device)
		}
	}
	input = strings.TrimPrefix(input, "file://")
	return strings.TrimSuffix(input, filepath.Ext(input))
}

func increment(name string) string {
	dir, base := filepath.Split(name)
	if m := trailingNumber.FindStringSubmatch(base); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return dir + m[1] + strconv.Itoa(n+1)
		}
	}
	return name + "1"
}

func join(name, ext string) string {
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func taken(path string, reserved Reserved) bool {
	if reserved != nil && reserved.Has(path) {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil
}
