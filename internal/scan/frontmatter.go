package scan

import (
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/AM-Campbell/sr/internal/diagnostic"
)

// parseFrontmatter extracts a markdown file's YAML frontmatter — a "---"
// delimited block at the top of the file — into a generic key/value map,
// forwarded verbatim to the adapter. An absent or malformed block yields
// an empty map rather than an error, which makes the file a silent skip
// for the scanner.
func parseFrontmatter(text string) map[string]any {
	if !strings.HasPrefix(text, "---") {
		return map[string]any{}
	}
	rest := text[3:]
	idx := strings.Index(rest, "\n---")
	if idx == -1 {
		return map[string]any{}
	}
	block := rest[:idx]

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		diagnostic.Warn("invalid frontmatter: %v", err)
		return map[string]any{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta
}

// parseDirConfig parses a `.sr.config` file's flat key=value pairs. The
// format is TOML-compatible, so this reuses the same decoder
// internal/config uses for settings.toml.
func parseDirConfig(data []byte) (map[string]any, error) {
	var cfg map[string]any
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	return cfg, nil
}
