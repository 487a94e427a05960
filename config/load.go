package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigFilename is the canonical per-project config file.
const ConfigFilename = ".watson.yaml"

// ConfigFilenames lists accepted per-project config files in lookup order.
var ConfigFilenames = []string{ConfigFilename, ".watson.yml", ".watson.toml"}

// DefaultProjectMarkers identify a project root when searching upward.
var DefaultProjectMarkers = []string{ConfigFilename, ".watson.yml", ".watson.toml", ".vip", "setup.py"}

// IsConfigFile reports whether name (a path relative to the project root)
// is a project config file.
func IsConfigFile(name string) bool {
	for _, f := range ConfigFilenames {
		if name == f {
			return true
		}
	}
	return false
}

// Dir returns watson's state directory, ~/.watson.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".watson"
	}
	return filepath.Join(home, ".watson")
}

// GlobalConfigPath returns the path of the user's global config file.
func GlobalConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// FindProjectDirectory walks up from start until it finds a directory that
// contains one of markers (DefaultProjectMarkers when none are given).
func FindProjectDirectory(start string, markers ...string) (string, error) {
	if len(markers) == 0 {
		markers = DefaultProjectMarkers
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrProjectNotFound, start)
		}
		dir = parent
	}
}

// FindConfigFile returns the first config file present in dir.
func FindConfigFile(dir string) (string, error) {
	for _, name := range ConfigFilenames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no %s in %s", ErrConfigMissing, ConfigFilename, dir)
}

// ProjectName derives a project name from its working directory.
func ProjectName(dir string) string {
	return filepath.Base(filepath.Clean(dir))
}

// Load reads a config file into a layer. The format is chosen by extension:
// .toml files are TOML, everything else is YAML.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return nil, err
	}

	layer := map[string]any{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &layer); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, path, err)
		}
		return layer, nil
	}

	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, path, err)
	}
	if layer == nil {
		layer = map[string]any{}
	}
	return layer, nil
}

// LoadSafe is Load, except that a missing file yields an empty layer.
func LoadSafe(path string) (map[string]any, error) {
	layer, err := Load(path)
	if errors.Is(err, ErrConfigMissing) {
		return map[string]any{}, nil
	}
	return layer, err
}

// LoadProject finds the config file in dir and loads it, filling in the
// project name and normalising the script to a list.
func LoadProject(dir string) (map[string]any, error) {
	path, err := FindConfigFile(dir)
	if err != nil {
		return nil, err
	}
	layer, err := Load(path)
	if err != nil {
		return nil, err
	}

	if _, ok := layer[KeyName]; !ok {
		layer[KeyName] = ProjectName(dir)
	}
	if script, ok := layer[KeyScript]; ok {
		commands, err := toStrings(KeyScript, script)
		if err != nil {
			return nil, err
		}
		layer[KeyScript] = commands
	}
	return layer, nil
}
