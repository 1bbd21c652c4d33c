package profile

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

const (
	// InitialMarker records that system presets were copied at least once.
	InitialMarker = ".initial_complete"

	lockName        = ".arista.lock"
	lockRetryDelay  = 100 * time.Millisecond
	maxPresetMember = 8 << 20
	presetFileMode  = 0o644
)

// ErrLocked is returned when another process holds the preset directory lock
// and the context ends before it is released.
var ErrLocked = errors.New("preset directory is locked")

// Install extracts a preset package (tar.bz2, or tar.gz) into dir and returns
// the ids of the device files it contained. Only regular files are written and
// members that would escape dir are rejected.
func Install(ctx context.Context, r io.Reader, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preset dir: %w", err)
	}
	unlock, err := lockDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stream, err := decompress(r)
	if err != nil {
		return nil, err
	}
	tr := tar.NewReader(stream)
	var ids []string
	for {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ids, fmt.Errorf("read preset package: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		rel, err := memberPath(hdr.Name)
		if err != nil {
			return ids, err
		}
		if hdr.Size > maxPresetMember {
			return ids, fmt.Errorf("preset package member %s is too large (%d bytes)", hdr.Name, hdr.Size)
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxPresetMember))
		if err != nil {
			return ids, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		dest := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return ids, fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		if err := writeFile(dest, data); err != nil {
			return ids, err
		}
		if filepath.Dir(rel) == "." && strings.EqualFold(filepath.Ext(rel), ".json") {
			ids = append(ids, strings.TrimSuffix(rel, filepath.Ext(rel)))
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read preset package: %w", err)
	}
	switch {
	case bytes.HasPrefix(magic, []byte("BZh")):
		return bzip2.NewReader(br), nil
	case bytes.HasPrefix(magic, []byte{0x1f, 0x8b}):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip package: %w", err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("%w: preset package is not a tar.bz2 or tar.gz archive", ErrInvalidProfile)
	}
}

func memberPath(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "./"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: unsafe path %q in preset package", ErrInvalidProfile, name)
	}
	return filepath.FromSlash(clean), nil
}

// ResetOptions controls how system presets are copied into the user directory.
type ResetOptions struct {
	// Overwrite replaces files that already exist in Target.
	Overwrite bool
	// IgnoreInitial copies even when the initial marker exists.
	IgnoreInitial bool
	// Sources are searched in priority order; earlier sources win.
	Sources []string
	// Target is the writable preset directory.
	Target string
}

// Reset copies device files from the source directories into the target. It
// does nothing when the initial marker is present unless IgnoreInitial is set.
// It returns the names of the files written.
func Reset(ctx context.Context, opts ResetOptions) ([]string, error) {
	if strings.TrimSpace(opts.Target) == "" {
		return nil, fmt.Errorf("reset presets: target directory is required")
	}
	if err := os.MkdirAll(opts.Target, 0o755); err != nil {
		return nil, fmt.Errorf("create preset dir: %w", err)
	}
	unlock, err := lockDir(ctx, opts.Target)
	if err != nil {
		return nil, err
	}
	defer unlock()

	marker := filepath.Join(opts.Target, InitialMarker)
	if !opts.IgnoreInitial {
		if _, err := os.Stat(marker); err == nil {
			return nil, nil
		}
	}

	sources := slices.Clone(opts.Sources)
	if opts.Overwrite {
		// Highest priority is written last so it ends up on disk.
		slices.Reverse(sources)
	}
	targetAbs, _ := filepath.Abs(opts.Target)
	var written []string
	for _, src := range sources {
		if srcAbs, _ := filepath.Abs(src); srcAbs == targetAbs {
			continue
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return written, fmt.Errorf("read preset source %s: %w", src, err)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return written, err
			}
			if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			dest := filepath.Join(opts.Target, entry.Name())
			if !opts.Overwrite {
				if _, err := os.Stat(dest); err == nil {
					continue
				}
			}
			data, err := os.ReadFile(filepath.Join(src, entry.Name()))
			if err != nil {
				return written, fmt.Errorf("read preset %s: %w", entry.Name(), err)
			}
			if err := writeFile(dest, data); err != nil {
				return written, err
			}
			if !slices.Contains(written, entry.Name()) {
				written = append(written, entry.Name())
			}
		}
	}
	if err := writeFile(marker, nil); err != nil {
		return written, err
	}
	slices.Sort(written)
	return written, nil
}

func writeFile(dest string, data []byte) error {
	if err := renameio.WriteFile(dest, data, presetFileMode); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func lockDir(ctx context.Context, dir string) (func(), error) {
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		return nil, fmt.Errorf("lock preset dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return func() { _ = lock.Unlock() }, nil
}
