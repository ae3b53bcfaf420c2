package workflow

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DecodeDefinition decodes a graph definition document. YAML and JSON are
// both accepted (JSON parses as YAML). Unknown fields are rejected so typos
// in definition files fail loudly instead of silently producing an empty
// node or edge.
func DecodeDefinition(b []byte) (Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		if err == io.EOF {
			return Definition{}, fmt.Errorf("decode graph definition: empty document")
		}
		return Definition{}, fmt.Errorf("decode graph definition: %w", err)
	}
	return def, nil
}

// LoadFile decodes a definition from a YAML/JSON file on disk.
func LoadFile(path string) (Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read %s: %w", path, err)
	}
	def, err := DecodeDefinition(b)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = path
	}
	return def, nil
}

// LoadGlob loads every definition file matching a doublestar pattern, e.g.
// "workflows/**/*.yaml". Matches are processed in sorted order so repeated
// loads register graphs deterministically. A directory with no matches is
// not an error.
func LoadGlob(pattern string) ([]Definition, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	defs := make([]Definition, 0, len(matches))
	for _, path := range matches {
		def, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
