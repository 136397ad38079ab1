// Package config loads and validates settings.toml, the flat key=value
// options file found in the application directory, and resolves the
// application directory itself.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the recognized key set for settings.toml.
type Settings struct {
	Scheduler string `toml:"scheduler"`
	// ReviewPort and EditCommand are consumed by the review server and
	// editor launcher, but parsing and validating them belongs here with
	// the rest of the file.
	ReviewPort  int    `toml:"review_port"`
	EditCommand string `toml:"edit_command,omitempty"`
}

// Default returns the documented defaults: scheduler "sm2", review_port 8791.
func Default() Settings {
	return Settings{
		Scheduler:  "sm2",
		ReviewPort: 8791,
	}
}

// Load reads and parses path. A missing file is not an error: it returns
// Default(). A present-but-invalid file returns an error.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	s := Default()
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes s to path in TOML form.
func Save(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the core cannot act on.
func (s Settings) Validate() error {
	if s.Scheduler == "" {
		return fmt.Errorf("config: scheduler must not be empty")
	}
	if s.ReviewPort <= 0 || s.ReviewPort > 65535 {
		return fmt.Errorf("config: review_port %d out of range", s.ReviewPort)
	}
	return nil
}

// EnsureDefault writes a default settings.toml at path if one does not
// already exist.
func EnsureDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	return Save(path, Default())
}
