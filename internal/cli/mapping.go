package cli

import (
	"fmt"
	"os"
	"strings"

	"review-hub-backend/internal/reviewcsv"

	"gopkg.in/yaml.v3"
)

// mappingFile is the YAML form of a column mapping:
//
//	columns:
//	  provider: platform
//	  created_at: date
//	  language: ""      # ignore
type mappingFile struct {
	Columns map[string]string `yaml:"columns"`
}

func loadMappingFile(path string) (map[reviewcsv.Field]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mf mappingFile
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[reviewcsv.Field]string, len(mf.Columns))
	for name, header := range mf.Columns {
		f, ok := reviewcsv.ParseField(name)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q", path, reviewcsv.ErrUnknownField, name)
		}
		out[f] = strings.TrimSpace(header)
	}
	return out, nil
}

// parseMapFlags reads repeated field=header pairs. "field=" ignores the field.
func parseMapFlags(pairs []string) (map[reviewcsv.Field]string, error) {
	out := make(map[reviewcsv.Field]string, len(pairs))
	for _, p := range pairs {
		name, header, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("--map %q: want field=header", p)
		}
		f, ok := reviewcsv.ParseField(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("--map %q: %w", p, reviewcsv.ErrUnknownField)
		}
		out[f] = strings.TrimSpace(header)
	}
	return out, nil
}

// mappingOverrides merges the mapping file with --map flags. Flags win.
func mappingOverrides(file string, pairs []string) (map[reviewcsv.Field]string, error) {
	out := map[reviewcsv.Field]string{}
	if file != "" {
		fromFile, err := loadMappingFile(file)
		if err != nil {
			return nil, err
		}
		for f, h := range fromFile {
			out[f] = h
		}
	}
	fromFlags, err := parseMapFlags(pairs)
	if err != nil {
		return nil, err
	}
	for f, h := range fromFlags {
		out[f] = h
	}
	return out, nil
}
