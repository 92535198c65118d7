// Package imports loads address lists to block from YAML, JSON, or TOML
// files. A file names its addresses under a top-level "block" key, either
// as a single string or as a list.
package imports

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/rr-block/internal/block/domain"
)

const keyBlock = "block"

// parserFor picks a koanf parser by file extension.
func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported import file type %q", ext)
	}
}

// LoadFile returns the distinct addresses listed in path, in file order.
// Any address that does not parse fails the whole load.
func LoadFile(path string) ([]domain.Address, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load import file %s: %w", path, err)
	}
	if !k.Exists(keyBlock) {
		return nil, fmt.Errorf("import file %s missing '%s'", path, keyBlock)
	}

	var (
		out  []domain.Address
		seen domain.BlockedSet
	)
	for i, s := range toStringValues(k.Get(keyBlock)) {
		a, err := domain.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
		if seen.Contains(a) {
			continue
		}
		seen.Add(a)
		out = append(out, a)
	}
	return out, nil
}

// toStringValues converts a raw koanf-parsed value (string or []any of strings) into a slice of
// non-empty strings, skipping empty or non-string elements.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				continue // skip non-strings silently
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
