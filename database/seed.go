package database

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed/defaults.yaml
var defaultsYAML []byte

// SeedCollection is a collection created when the catalog is empty.
type SeedCollection struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SortOrder   int    `yaml:"sortOrder"`
	IsFeatured  bool   `yaml:"isFeatured"`
}

// Defaults is the embedded seed content.
type Defaults struct {
	Collections []SeedCollection `yaml:"collections"`
	Settings    map[string]any   `yaml:"settings"`
}

// LoadDefaults parses the embedded defaults.
func LoadDefaults() (Defaults, error) {
	return ParseDefaults(defaultsYAML)
}

// ParseDefaults parses seed content in the defaults.yaml format.
func ParseDefaults(data []byte) (Defaults, error) {
	var defaults Defaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return Defaults{}, fmt.Errorf("parse seed defaults: %w", err)
	}

	for i, c := range defaults.Collections {
		if strings.TrimSpace(c.Name) == "" {
			return Defaults{}, fmt.Errorf("seed collection %d: name is required", i)
		}
	}
	if len(defaults.Settings) == 0 {
		return Defaults{}, errors.New("seed settings are required")
	}

	return defaults, nil
}

// SettingsJSON returns the default settings document as JSON.
func (d Defaults) SettingsJSON() (json.RawMessage, error) {
	raw, err := json.Marshal(d.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode seed settings: %w", err)
	}
	return raw, nil
}
