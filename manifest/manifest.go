// Package manifest handles grava.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked for in a project directory.
const FileName = "grava.toml"

// Manifest represents a grava.toml configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Runtime Runtime `toml:"runtime"`
	REPL    REPL    `toml:"repl"`
	Image   Image   `toml:"image"`

	// Dir is the directory containing the grava.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Runtime configures VM behavior.
type Runtime struct {
	Trace bool `toml:"trace"`
}

// REPL configures the interactive session.
type REPL struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"`
}

// Image configures session image output.
type Image struct {
	Output string `toml:"output"`
}

// Load parses a grava.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = "> "
	}
	if m.Image.Output == "" {
		m.Image.Output = "grava.image"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a grava.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the configuration used when no manifest is present.
func Default() *Manifest {
	return &Manifest{
		REPL:  REPL{Prompt: "> "},
		Image: Image{Output: "grava.image"},
	}
}

// HistoryPath returns the configured history database path resolved
// against the manifest directory, or "" when history is disabled.
func (m *Manifest) HistoryPath() string {
	if m.REPL.History == "" {
		return ""
	}
	if filepath.IsAbs(m.REPL.History) || m.Dir == "" {
		return m.REPL.History
	}
	return filepath.Join(m.Dir, m.REPL.History)
}

// ImagePath returns the configured image output path resolved against
// the manifest directory.
func (m *Manifest) ImagePath() string {
	if filepath.IsAbs(m.Image.Output) || m.Dir == "" {
		return m.Image.Output
	}
	return filepath.Join(m.Dir, m.Image.Output)
}
