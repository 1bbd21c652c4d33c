package profile_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"arista/internal/profile"
)

type member struct {
	name string
	body string
	typ  byte
}

func tarball(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		typ := m.typ
		if typ == 0 {
			typ = tar.TypeReg
		}
		hdr := &tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body)), Typeflag: typ}
		if typ != tar.TypeReg {
			hdr.Size = 0
			hdr.Linkname = "/etc/passwd"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if typ == tar.TypeReg {
			if _, err := tw.Write([]byte(m.body)); err != nil {
				t.Fatalf("write body: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

const tinyDevice = `{"model":"Tiny","presets":{"Low":{"vcodec":{"name":"libx264","passes":["crf=30"]}}}}`

func TestInstallExtractsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	archive := gzipped(t, tarball(t,
		member{name: "./tiny.json", body: tinyDevice},
		member{name: "tiny.svg", body: "<svg/>"},
		member{name: "link.json", typ: tar.TypeSymlink},
	))

	ids, err := profile.Install(context.Background(), bytes.NewReader(archive), dir)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if diff := cmp.Diff([]string{"tiny"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Lstat(filepath.Join(dir, "link.json")); !os.IsNotExist(err) {
		t.Fatalf("symlink member should be skipped, stat err=%v", err)
	}
	catalog, err := profile.LoadDirs([]string{dir}, nil)
	if err != nil {
		t.Fatalf("LoadDirs: %v", err)
	}
	if _, err := catalog.LookupDevice("tiny"); err != nil {
		t.Fatalf("installed device not loadable: %v", err)
	}
}

func TestInstallRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := gzipped(t, tarball(t, member{name: "../evil.json", body: tinyDevice}))
	_, err := profile.Install(context.Background(), bytes.NewReader(archive), dir)
	if !errors.Is(err, profile.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "evil.json")); !os.IsNotExist(statErr) {
		t.Fatal("traversal member was written outside the preset dir")
	}
}

func TestInstallRejectsUnknownFormat(t *testing.T) {
	_, err := profile.Install(context.Background(), bytes.NewReader([]byte("plain text")), t.TempDir())
	if !errors.Is(err, profile.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
}

func TestInstallBzip2(t *testing.T) {
	bzip2Path, err := exec.LookPath("bzip2")
	if err != nil {
		t.Skip("bzip2 not available")
	}
	cmd := exec.Command(bzip2Path, "-c")
	cmd.Stdin = bytes.NewReader(tarball(t, member{name: "tiny.json", body: tinyDevice}))
	archive, err := cmd.Output()
	if err != nil {
		t.Fatalf("bzip2: %v", err)
	}
	ids, err := profile.Install(context.Background(), bytes.NewReader(archive), t.TempDir())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(ids) != 1 || ids[0] != "tiny" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestInstallWaitsForLock(t *testing.T) {
	dir := t.TempDir()
	held := flock.New(filepath.Join(dir, ".arista.lock"))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer func() { _ = held.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	archive := gzipped(t, tarball(t, member{name: "tiny.json", body: tinyDevice}))
	_, err := profile.Install(ctx, bytes.NewReader(archive), dir)
	if !errors.Is(err, profile.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestResetHonoursMarkerAndOverwrite(t *testing.T) {
	system := t.TempDir()
	target := t.TempDir()
	writeJSON(t, system, "tiny.json", tinyDevice)
	writeJSON(t, system, "other.json", tinyDevice)
	writeJSON(t, target, "other.json", `{"model":"Mine","presets":{"A":{"vcodec":{"name":"x","passes":["y"]}}}}`)

	ctx := context.Background()
	written, err := profile.Reset(ctx, profile.ResetOptions{Sources: []string{system}, Target: target})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if diff := cmp.Diff([]string{"tiny.json"}, written); diff != "" {
		t.Fatalf("first reset mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(target, profile.InitialMarker)); err != nil {
		t.Fatalf("marker not written: %v", err)
	}

	if err := os.Remove(filepath.Join(target, "tiny.json")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	written, err = profile.Reset(ctx, profile.ResetOptions{Sources: []string{system}, Target: target})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(written) != 0 {
		t.Fatalf("marker should suppress reset, wrote %v", written)
	}

	written, err = profile.Reset(ctx, profile.ResetOptions{Sources: []string{system}, Target: target, Overwrite: true, IgnoreInitial: true})
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if diff := cmp.Diff([]string{"other.json", "tiny.json"}, written); diff != "" {
		t.Fatalf("forced reset mismatch (-want +got):\n%s", diff)
	}
	device, err := profile.LoadFile(filepath.Join(target, "other.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if device.Model != "Tiny" {
		t.Fatalf("overwrite should replace user file, got model %q", device.Model)
	}
}
