package outputpath

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestGenerateAddsDeviceSuffix(t *testing.T) {
	dir := t.TempDir()
	got := Generate(filepath.Join(dir, "holiday.avi"), "m4v", "ipod", nil)
	if want := filepath.Join(dir, "holiday-ipod.m4v"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestGenerateIncrementsOnCollision(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mov")
	touch(t, filepath.Join(dir, "clip.mkv"))
	reserved := Reserved{}
	reserved.Add(filepath.Join(dir, "clip1.mkv"))

	got := Generate(input, "mkv", "", reserved)
	if want := filepath.Join(dir, "clip2.mkv"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestGenerateIncrementsMultiDigitNumbers(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "episode12.mkv"))
	got := Generate(filepath.Join(dir, "episode12.ts"), "mkv", "", nil)
	if want := filepath.Join(dir, "episode13.mkv"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestGenerateSpecialLocators(t *testing.T) {
	cases := map[string]string{
		"dvd:///dev/sr0@1:a:a": "sr0-computer.mkv",
		"v4l2:///dev/video0":   "video0-computer.mkv",
	}
	dir := t.TempDir()
	for input, want := range cases {
		if got := GenerateIn(dir, input, "mkv", "computer", nil); got != filepath.Join(dir, want) {
			t.Fatalf("GenerateIn(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestGenerateInDirectory(t *testing.T) {
	out := t.TempDir()
	got := GenerateIn(out, "/media/in/film.mkv", ".webm", "", nil)
	if want := filepath.Join(out, "film.webm"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
