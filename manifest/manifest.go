package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNotFound        = errors.New("manifest file not found")
	ErrInvalidJSON     = errors.New("manifest is not valid JSON")
	ErrInvalidManifest = errors.New("invalid manifest")
)

// Manifest describes a voice-synthesis engine package (resampler.json).
type Manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Entry   Entry  `json:"entry"`
	Audio   Audio  `json:"audio"`
	Flags   []Flag `json:"flags,omitempty"`
}

// Entry declares how the engine is invoked.
type Entry struct {
	Type   string `json:"type"` // dll, cli or ipc
	Path   string `json:"path"`
	Symbol string `json:"symbol,omitempty"`
}

// Audio declares the PCM formats the engine accepts.
type Audio struct {
	Rates     []int `json:"rates"`
	Channels  []int `json:"channels"`
	Streaming bool  `json:"streaming,omitempty"`
}

// Flag describes one engine flag an editor may present.
type Flag struct {
	Key     string     `json:"key"`
	Type    string     `json:"type"` // float, int, bool, string or enum
	Desc    string     `json:"desc"`
	Default any        `json:"default,omitempty"`
	Range   []float64  `json:"range,omitempty"`
	Values  []string   `json:"values,omitempty"`
}

// Load reads a manifest from disk without validating it.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return m, nil
}

// Validate ensures the manifest carries every required field within the
// documented bounds.
func Validate(m Manifest) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidManifest)
	}
	if m.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidManifest)
	}
	switch m.Entry.Type {
	case "dll", "cli", "ipc":
	case "":
		return fmt.Errorf("%w: entry.type is required", ErrInvalidManifest)
	default:
		return fmt.Errorf("%w: entry.type %q not supported", ErrInvalidManifest, m.Entry.Type)
	}
	if m.Entry.Path == "" {
		return fmt.Errorf("%w: entry.path is required", ErrInvalidManifest)
	}

	if len(m.Audio.Rates) == 0 {
		return fmt.Errorf("%w: audio.rates must declare at least one rate", ErrInvalidManifest)
	}
	for _, r := range m.Audio.Rates {
		if r <= 0 || r > 192000 {
			return fmt.Errorf("%w: audio rate %d outside (0, 192000]", ErrInvalidManifest, r)
		}
	}
	if len(m.Audio.Channels) == 0 {
		return fmt.Errorf("%w: audio.channels must declare at least one count", ErrInvalidManifest)
	}
	for _, c := range m.Audio.Channels {
		if c <= 0 || c > 8 {
			return fmt.Errorf("%w: audio channel count %d outside (0, 8]", ErrInvalidManifest, c)
		}
	}

	seen := make(map[string]bool, len(m.Flags))
	for _, f := range m.Flags {
		if f.Key == "" {
			return fmt.Errorf("%w: flag key is required", ErrInvalidManifest)
		}
		if seen[f.Key] {
			return fmt.Errorf("%w: duplicate flag key %q", ErrInvalidManifest, f.Key)
		}
		seen[f.Key] = true
		if f.Desc == "" {
			return fmt.Errorf("%w: flag %q desc is required", ErrInvalidManifest, f.Key)
		}
		switch f.Type {
		case "float", "int":
			if len(f.Range) > 0 {
				if len(f.Range) != 2 {
					return fmt.Errorf("%w: flag %q range must hold exactly [min, max]", ErrInvalidManifest, f.Key)
				}
				if f.Range[0] >= f.Range[1] {
					return fmt.Errorf("%w: flag %q range min %g not below max %g", ErrInvalidManifest, f.Key, f.Range[0], f.Range[1])
				}
			}
		case "bool", "string":
			if len(f.Range) > 0 {
				return fmt.Errorf("%w: flag %q of type %s cannot declare a range", ErrInvalidManifest, f.Key, f.Type)
			}
		case "enum":
			if len(f.Values) == 0 {
				return fmt.Errorf("%w: enum flag %q must declare values", ErrInvalidManifest, f.Key)
			}
			for _, v := range f.Values {
				if v == "" {
					return fmt.Errorf("%w: enum flag %q has an empty value", ErrInvalidManifest, f.Key)
				}
			}
		case "":
			return fmt.Errorf("%w: flag %q type is required", ErrInvalidManifest, f.Key)
		default:
			return fmt.Errorf("%w: flag %q type %q not supported", ErrInvalidManifest, f.Key, f.Type)
		}
	}
	return nil
}

// SupportsRate reports whether the engine accepts the sample rate.
func (m Manifest) SupportsRate(rate int) bool {
	for _, r := range m.Audio.Rates {
		if r == rate {
			return true
		}
	}
	return false
}

// SupportsChannels reports whether the engine accepts the channel count.
func (m Manifest) SupportsChannels(channels int) bool {
	for _, c := range m.Audio.Channels {
		if c == channels {
			return true
		}
	}
	return false
}
