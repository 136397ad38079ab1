// Package scan walks filesystem paths, resolves each path's adapter, and
// emits (source, adapter, cards, config) tuples for the synchronizer.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AM-Campbell/sr/internal/adapter"
	"github.com/AM-Campbell/sr/internal/diagnostic"
)

// Tuple is one scanned source: its path, the adapter that parsed it, the
// cards it produced, and the per-source configuration forwarded to the
// adapter.
type Tuple struct {
	SourcePath string
	Adapter    string
	Cards      []adapter.CardRecord
	Config     map[string]any
}

// Scan walks paths and returns the scan tuples. A read error or adapter
// failure on one file is logged and does not abort the scan; each source
// path is emitted at most once regardless of overlap between inputs.
func Scan(paths []string) []Tuple {
	var out []Tuple
	seen := map[string]bool{}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			diagnostic.Warn("cannot resolve path %s: %v", p, err)
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			diagnostic.Warn("cannot stat %s: %v", abs, err)
			continue
		}
		switch {
		case !info.IsDir() && strings.HasSuffix(abs, ".md"):
			scanMDFile(abs, seen, &out)
		case info.IsDir():
			scanDirectory(abs, seen, &out)
		}
	}

	return out
}

// scanMDFile handles a markdown file: it opts in by carrying an
// `sr_adapter` frontmatter key, otherwise it is skipped silently.
func scanMDFile(path string, seen map[string]bool, out *[]Tuple) {
	if seen[path] {
		return
	}
	seen[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		diagnostic.Warn("cannot read %s: %v", path, err)
		return
	}
	text := string(data)

	meta := parseFrontmatter(text)
	adapterName, _ := meta["sr_adapter"].(string)
	if adapterName == "" {
		return
	}

	a, err := adapter.Get(adapterName)
	if err != nil {
		diagnostic.Warn("cannot load adapter %q for %s: %v", adapterName, path, err)
		return
	}
	cards, err := a.Parse(text, path, meta)
	if err != nil {
		diagnostic.Warn("adapter %q failed on %s: %v", adapterName, path, err)
		return
	}
	*out = append(*out, Tuple{SourcePath: path, Adapter: adapterName, Cards: cards, Config: meta})
}

// scanDirectory handles a directory: a .sr.config file routes every
// regular file in the directory through one adapter; absent that, recurse
// into non-hidden subdirectories and pick up markdown files. Enumeration
// is sorted so scan order is deterministic.
func scanDirectory(dir string, seen map[string]bool, out *[]Tuple) {
	cfgPath := filepath.Join(dir, ".sr.config")
	cfgData, err := os.ReadFile(cfgPath)
	switch {
	case err == nil:
		scanDirWithConfig(dir, cfgData, seen, out)
		return
	case !os.IsNotExist(err):
		diagnostic.Warn("cannot read %s: %v", cfgPath, err)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		diagnostic.Warn("cannot list %s: %v", dir, err)
		return
	}
	names := entryNames(entries)
	sort.Strings(names)

	for _, name := range names {
		fp := filepath.Join(dir, name)
		info, err := os.Lstat(fp)
		if err != nil {
			diagnostic.Warn("cannot stat %s: %v", fp, err)
			continue
		}
		switch {
		case info.IsDir():
			if strings.HasPrefix(name, ".") {
				continue
			}
			scanDirectory(fp, seen, out)
		case strings.HasSuffix(name, ".md"):
			scanMDFile(fp, seen, out)
		}
	}
}

func scanDirWithConfig(dir string, cfgData []byte, seen map[string]bool, out *[]Tuple) {
	cfg, err := parseDirConfig(cfgData)
	if err != nil {
		diagnostic.Warn("invalid .sr.config in %s: %v", dir, err)
		return
	}
	adapterName, _ := cfg["adapter"].(string)
	if adapterName == "" {
		diagnostic.Warn(".sr.config in %s missing 'adapter'", dir)
		return
	}
	a, err := adapter.Get(adapterName)
	if err != nil {
		diagnostic.Warn("cannot load adapter %q for %s: %v", adapterName, dir, err)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		diagnostic.Warn("cannot list %s: %v", dir, err)
		return
	}
	names := entryNames(entries)
	sort.Strings(names)

	for _, name := range names {
		if name == ".sr.config" {
			continue
		}
		fp := filepath.Join(dir, name)
		info, err := os.Lstat(fp)
		if err != nil || info.IsDir() {
			continue
		}
		if seen[fp] {
			continue
		}
		seen[fp] = true

		data, err := os.ReadFile(fp)
		if err != nil {
			diagnostic.Warn("cannot read %s: %v", fp, err)
			continue
		}
		cards, err := a.Parse(string(data), fp, cfg)
		if err != nil {
			diagnostic.Warn("adapter %q failed on %s: %v", adapterName, fp, err)
			continue
		}
		*out = append(*out, Tuple{SourcePath: fp, Adapter: adapterName, Cards: cards, Config: cfg})
	}
}

func entryNames(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
