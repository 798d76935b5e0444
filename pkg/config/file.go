package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// FileNames are the config file names searched by Find, in order.
var FileNames = []string{
	".pagetrack.yaml",
	".pagetrack.yml",
	".pagetrack.jsonc",
	".pagetrack.json",
}

// Find walks up from dir looking for a config file and returns its path,
// or "" if none exists.
func Find(dir string) string {
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadFile reads settings from a YAML or JSON(C) file, chosen by extension.
func LoadFile(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(path, data, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Decode parses data into s using the format implied by name.
func Decode(name string, data []byte, s *Settings) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), s); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(name))
	}
	return nil
}

// Load resolves settings the way the CLI does: the file at path (or the
// first file found walking up from the working directory when path is
// empty), then environment overrides, then defaults.
func Load(path string) (Settings, string, error) {
	var s Settings

	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = Find(wd)
		}
	}
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return Settings{}, path, err
		}
		s = loaded
	}

	if err := ParseEnv(&s); err != nil {
		return Settings{}, path, err
	}
	s.ApplyDefaults()
	return s, path, nil
}
