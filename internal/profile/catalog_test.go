package profile_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"arista/internal/profile"
)

func loadTestCatalog(t *testing.T) *profile.Catalog {
	t.Helper()
	catalog, err := profile.LoadDirs([]string{"testdata"}, nil)
	if err != nil {
		t.Fatalf("LoadDirs: %v", err)
	}
	return catalog
}

func TestLoadFileParsesDevice(t *testing.T) {
	device, err := profile.LoadFile(filepath.Join("testdata", "computer.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if device.ID != "computer" {
		t.Fatalf("expected id computer, got %q", device.ID)
	}
	if device.Name() != "Computer" {
		t.Fatalf("generic device should be named by model, got %q", device.Name())
	}
	preset := device.Presets["H.264"]
	if preset == nil {
		t.Fatal("expected H.264 preset")
	}
	want := &profile.VideoCodec{
		Codec: profile.Codec{
			Name:      "libx264",
			Container: "matroskamux",
			Passes: []string{
				"preset=slow pass=1 threads=%(threads)s",
				"preset=slow pass=2 threads=%(threads)s",
			},
		},
		Rate:   profile.FractionRange{Min: profile.Fraction{Num: 1, Den: 1}, Max: profile.Fraction{Num: 60, Den: 1}},
		Width:  profile.IntRange{Min: 120, Max: 1920},
		Height: profile.IntRange{Min: 120, Max: 1080},
	}
	if diff := cmp.Diff(want, preset.Video); diff != "" {
		t.Fatalf("video codec mismatch (-want +got):\n%s", diff)
	}
	if preset.PassCount() != 2 {
		t.Fatalf("expected 2 passes, got %d", preset.PassCount())
	}
	if preset.Author.Name != "Daniel G. Taylor" {
		t.Fatalf("preset author should default from device, got %+v", preset.Author)
	}
}

func TestPresetFieldsDefaultFromDevice(t *testing.T) {
	device, err := profile.LoadFile(filepath.Join("testdata", "computer.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	lossless := device.Presets["H.264 Lossless"]
	if lossless.Description != device.Description || lossless.Version != "1.2" || lossless.Icon != device.Icon {
		t.Fatalf("expected device defaults, got %+v", lossless)
	}
	if lossless.Extension != "mkv" {
		t.Fatalf("expected mkv extension for matroskamux, got %q", lossless.Extension)
	}
	if lossless.Audio != nil {
		t.Fatal("expected no audio codec")
	}
	if got := lossless.Video.Rate.Min; got != (profile.Fraction{Num: 30000, Den: 1001}) {
		t.Fatalf("unexpected fractional rate %v", got)
	}
	theora := device.Presets["Theora"]
	if theora.Description != "Open formats" {
		t.Fatalf("explicit description should win, got %q", theora.Description)
	}
}

func TestDeviceNameIncludesMake(t *testing.T) {
	catalog := loadTestCatalog(t)
	device, err := catalog.LookupDevice("ipod")
	if err != nil {
		t.Fatalf("LookupDevice: %v", err)
	}
	if device.Name() != "Apple iPod" {
		t.Fatalf("unexpected name %q", device.Name())
	}
}

func TestLookupDeviceNotFound(t *testing.T) {
	catalog := loadTestCatalog(t)
	_, err := catalog.LookupDevice("toaster")
	if !errors.Is(err, profile.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "computer") {
		t.Fatalf("error should list available devices: %v", err)
	}
}

func TestResolvePreset(t *testing.T) {
	catalog := loadTestCatalog(t)
	computer, err := catalog.LookupDevice("computer")
	if err != nil {
		t.Fatalf("LookupDevice: %v", err)
	}
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "default", query: "", want: "H.264"},
		{name: "exact beats prefix", query: "H.264", want: "H.264"},
		{name: "unique prefix", query: "Th", want: "Theora"},
		{name: "prefix is case sensitive", query: "th", wantErr: true},
		{name: "ambiguous prefix", query: "H", wantErr: true},
		{name: "unknown", query: "VP9", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			preset, err := computer.ResolvePreset(tc.query)
			if tc.wantErr {
				if !errors.Is(err, profile.ErrPresetNotFound) {
					t.Fatalf("expected ErrPresetNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePreset: %v", err)
			}
			if preset.Name != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, preset.Name)
			}
		})
	}
}

func TestLoadDirsSkipsInvalidAndPrefersEarlierDirs(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeJSON(t, first, "ipod.json", `{"model":"Override","default":"A","presets":{"A":{"vcodec":{"name":"libx264","passes":[""]}}}}`)
	writeJSON(t, first, "broken.json", `{"model":`)
	writeJSON(t, first, "nodefault.json", `{"model":"X","default":"Missing","presets":{"A":{"vcodec":{"name":"libx264","passes":[""]}}}}`)
	data, err := os.ReadFile(filepath.Join("testdata", "ipod.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	writeJSON(t, second, "ipod.json", string(data))

	catalog, err := profile.LoadDirs([]string{first, filepath.Join(first, "missing"), second}, nil)
	if err != nil {
		t.Fatalf("LoadDirs: %v", err)
	}
	if diff := cmp.Diff([]string{"ipod"}, catalog.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	device, _ := catalog.LookupDevice("ipod")
	if device.Model != "Override" {
		t.Fatalf("expected earlier directory to win, got %q", device.Model)
	}
}

func TestDefaultPresetFallsBackToFirst(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "box.json", `{"model":"Box","presets":{"Zed":{"vcodec":{"name":"a","passes":["x"]}},"Alpha":{"vcodec":{"name":"b","passes":["y"]}}}}`)
	device, err := profile.LoadFile(filepath.Join(dir, "box.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	preset, err := device.DefaultPreset()
	if err != nil {
		t.Fatalf("DefaultPreset: %v", err)
	}
	if preset.Name != "Alpha" {
		t.Fatalf("expected Alpha, got %q", preset.Name)
	}
}

func TestLoadFileRejectsInvertedRange(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "bad.json", `{"model":"Bad","presets":{"A":{"vcodec":{"name":"a","width":[640,320],"passes":["x"]}}}}`)
	_, err := profile.LoadFile(filepath.Join(dir, "bad.json"))
	if !errors.Is(err, profile.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
}

func TestVersionInfo(t *testing.T) {
	catalog := loadTestCatalog(t)
	want := "computer, 1.2\nipod, 1.0\n"
	if got := catalog.VersionInfo(); got != want {
		t.Fatalf("unexpected version info %q", got)
	}
}

func TestPresetSlug(t *testing.T) {
	preset := &profile.Preset{Name: "Dan's Custom/HQ Preset", DeviceID: "computer"}
	if got := preset.Slug(); got != "computer-dans_customhq_preset" {
		t.Fatalf("unexpected slug %q", got)
	}
}

func writeJSON(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
