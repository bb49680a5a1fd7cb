// Package flagmap translates editor flag sets into engine flags using a
// rule document shipped alongside an engine manifest. It also parses the
// legacy "g50;bre20;t=1" flag strings older editors emit.
package flagmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrNotFound     = errors.New("rules file not found")
	ErrInvalidJSON  = errors.New("rules document is not valid JSON")
	ErrInvalidRules = errors.New("invalid flag rules")
)

// Rules is one engine's flag translation document.
type Rules struct {
	Engine  string `json:"engine"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Rule maps one source flag onto one target flag through a transform.
type Rule struct {
	Source    Source    `json:"source"`
	Target    Target    `json:"target"`
	Transform Transform `json:"transform"`
}

type Source struct {
	Name string `json:"name"`
}

type Target struct {
	Name    string `json:"name"`
	Default string `json:"default,omitempty"`
}

// Transform declares how the source value becomes the target value.
// Kind is one of copy, scale, map or constant.
type Transform struct {
	Kind  string            `json:"kind"`
	Scale []float64         `json:"scale,omitempty"` // [min, max], scale only
	Map   map[string]string `json:"map,omitempty"`   // map only
	Value string            `json:"value,omitempty"` // constant only
}

// LoadRules reads and validates a rules document from disk.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Rules{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates a rules document.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := validate(r); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func validate(r Rules) error {
	for i, rule := range r.Rules {
		if rule.Source.Name == "" {
			return fmt.Errorf("%w: rule %d has no source name", ErrInvalidRules, i)
		}
		if rule.Target.Name == "" {
			return fmt.Errorf("%w: rule %d has no target name", ErrInvalidRules, i)
		}
		switch rule.Transform.Kind {
		case "copy":
		case "scale":
			if len(rule.Transform.Scale) != 2 {
				return fmt.Errorf("%w: rule %d scale must hold exactly [min, max]", ErrInvalidRules, i)
			}
		case "map":
			if len(rule.Transform.Map) == 0 {
				return fmt.Errorf("%w: rule %d map transform has no entries", ErrInvalidRules, i)
			}
		case "constant":
			if rule.Transform.Value == "" {
				return fmt.Errorf("%w: rule %d constant transform has no value", ErrInvalidRules, i)
			}
		case "":
			return fmt.Errorf("%w: rule %d transform kind is required", ErrInvalidRules, i)
		default:
			return fmt.Errorf("%w: rule %d transform kind %q not supported", ErrInvalidRules, i, rule.Transform.Kind)
		}
	}
	return nil
}

// Apply runs every rule against the input flags. A transform that cannot
// digest its input records a warning and falls back to the target's
// default; targets with neither a usable value nor a default are omitted.
func Apply(r Rules, in map[string]string) (map[string]string, []string) {
	out := make(map[string]string, len(r.Rules))
	var warnings []string

	for _, rule := range r.Rules {
		value, present := in[rule.Source.Name]
		if !present {
			if rule.Target.Default != "" {
				out[rule.Target.Name] = rule.Target.Default
			}
			continue
		}

		mapped, warn := transform(rule, value)
		if warn != "" {
			warnings = append(warnings, warn)
		}
		if mapped == "" && warn != "" {
			mapped = rule.Target.Default
		}
		if mapped != "" {
			out[rule.Target.Name] = mapped
		}
	}
	return out, warnings
}

func transform(rule Rule, value string) (string, string) {
	switch rule.Transform.Kind {
	case "copy":
		return value, ""
	case "scale":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", fmt.Sprintf("scale %s: %q is not a number", rule.Source.Name, value)
		}
		min, max := rule.Transform.Scale[0], rule.Transform.Scale[1]
		return strconv.FormatFloat(min+(max-min)*v, 'g', 6, 64), ""
	case "map":
		if mapped, ok := rule.Transform.Map[value]; ok {
			return mapped, ""
		}
		return "", fmt.Sprintf("map %s: value %q not found in mapping", rule.Source.Name, value)
	case "constant":
		return rule.Transform.Value, ""
	default:
		return value, ""
	}
}

// ParseLegacy splits a classic "g50;bre20;t=1" flag string into a key
// value map. Segments are ';' separated with an optional '=', whitespace
// is trimmed, empty segments are skipped and bare keys get an empty
// value.
func ParseLegacy(s string) map[string]string {
	out := make(map[string]string)
	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key, value, found := strings.Cut(seg, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if found {
			out[key] = strings.TrimSpace(value)
		} else {
			out[key] = ""
		}
	}
	return out
}
