package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validJSON = `{
  "name": "world-resampler",
  "version": "1.2.0",
  "entry": {
    "type": "cli",
    "path": "bin/resampler",
    "symbol": ""
  },
  "audio": {
    "rates": [44100, 48000],
    "channels": [1, 2],
    "streaming": true
  },
  "flags": [
    {"key": "g", "type": "float", "desc": "gender factor", "default": 0, "range": [-100, 100]},
    {"key": "mode", "type": "enum", "desc": "render mode", "values": ["fast", "quality"]},
    {"key": "bre", "type": "int", "desc": "breathiness"}
  ]
}`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resampler.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidManifest(t *testing.T) {
	m, err := Load(writeManifest(t, validJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(m); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if m.Name != "world-resampler" || m.Entry.Type != "cli" {
		t.Fatalf("unexpected manifest contents: %+v", m)
	}
	if !m.Audio.Streaming {
		t.Fatal("streaming capability lost in load")
	}
	if len(m.Flags) != 3 {
		t.Fatalf("flags = %d, want 3", len(m.Flags))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	_, err := Load(writeManifest(t, `{"name": "broken"`))
	if !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("error = %v, want ErrInvalidJSON", err)
	}
}

func TestValidateEmptyManifest(t *testing.T) {
	if err := Validate(Manifest{}); !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("error = %v, want ErrInvalidManifest", err)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() Manifest {
		return Manifest{
			Name:    "engine",
			Version: "1.0",
			Entry:   Entry{Type: "dll", Path: "engine.wasm"},
			Audio:   Audio{Rates: []int{44100}, Channels: []int{1}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"unknown entry type", func(m *Manifest) { m.Entry.Type = "com" }},
		{"missing entry path", func(m *Manifest) { m.Entry.Path = "" }},
		{"no rates", func(m *Manifest) { m.Audio.Rates = nil }},
		{"zero rate", func(m *Manifest) { m.Audio.Rates = []int{0} }},
		{"rate too high", func(m *Manifest) { m.Audio.Rates = []int{192001} }},
		{"no channels", func(m *Manifest) { m.Audio.Channels = nil }},
		{"nine channels", func(m *Manifest) { m.Audio.Channels = []int{9} }},
		{"flag without key", func(m *Manifest) {
			m.Flags = []Flag{{Type: "bool", Desc: "d"}}
		}},
		{"flag without desc", func(m *Manifest) {
			m.Flags = []Flag{{Key: "g", Type: "float"}}
		}},
		{"flag unknown type", func(m *Manifest) {
			m.Flags = []Flag{{Key: "g", Type: "double", Desc: "d"}}
		}},
		{"duplicate flag keys", func(m *Manifest) {
			m.Flags = []Flag{
				{Key: "g", Type: "bool", Desc: "d"},
				{Key: "g", Type: "bool", Desc: "d"},
			}
		}},
		{"range on bool flag", func(m *Manifest) {
			m.Flags = []Flag{{Key: "g", Type: "bool", Desc: "d", Range: []float64{0, 1}}}
		}},
		{"one-element range", func(m *Manifest) {
			m.Flags = []Flag{{Key: "g", Type: "float", Desc: "d", Range: []float64{1}}}
		}},
		{"inverted range", func(m *Manifest) {
			m.Flags = []Flag{{Key: "g", Type: "int", Desc: "d", Range: []float64{10, -10}}}
		}},
		{"enum without values", func(m *Manifest) {
			m.Flags = []Flag{{Key: "mode", Type: "enum", Desc: "d"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := base()
			tc.mutate(&m)
			if err := Validate(m); !errors.Is(err, ErrInvalidManifest) {
				t.Fatalf("error = %v, want ErrInvalidManifest", err)
			}
		})
	}
}

func TestSupportHelpers(t *testing.T) {
	m := Manifest{Audio: Audio{Rates: []int{44100, 48000}, Channels: []int{1, 2}}}
	if !m.SupportsRate(48000) || m.SupportsRate(22050) {
		t.Fatal("SupportsRate misreported")
	}
	if !m.SupportsChannels(2) || m.SupportsChannels(6) {
		t.Fatal("SupportsChannels misreported")
	}
}
