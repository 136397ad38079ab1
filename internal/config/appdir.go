package config

import (
	"os"
	"path/filepath"
)

// EnvOverride names the environment variable that, if set, names the
// application directory directly.
const EnvOverride = "SR_DIR"

// userConfigFileName names the file (under the user config directory) that
// step 2 consults: its whole content, minus trailing newlines, is the
// application directory, the way a user points the tool at a non-default
// location.
const userConfigFileName = "sr/location"

// defaultSubdir is the fixed fallback (step 3): $HOME/.sr.
const defaultSubdir = ".sr"

// ResolveAppDir implements the 3-step resolution order: environment
// override, then a user config file, then a fixed default.
func ResolveAppDir() (string, error) {
	if v := os.Getenv(EnvOverride); v != "" {
		return v, nil
	}

	if cfgHome, err := os.UserConfigDir(); err == nil {
		locFile := filepath.Join(cfgHome, userConfigFileName)
		if data, err := os.ReadFile(locFile); err == nil {
			dir := string(trimNewline(data))
			if dir != "" {
				return dir, nil
			}
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultSubdir), nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
