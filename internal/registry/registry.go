// Package registry holds the catalog of options that are easy to smoke-test.
package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/harrison/smokegen/internal/models"
)

// builtin lists the options every registry starts with.
var builtin = []models.OptionDefinition{
	{Kind: models.OptionShort, Value: "h", Keyword: "help"},
	{Kind: models.OptionShort, Value: "v", Keyword: "version"},
}

// Registry maps an option value to its definition. It is never modified after
// construction, so it is safe to share between scans.
type Registry struct {
	defs map[string]models.OptionDefinition
}

// Build returns a registry holding only the built-in definitions.
func Build() *Registry {
	r, err := BuildWith(nil)
	if err != nil {
		// builtin is static and known to be valid
		panic(err)
	}
	return r
}

// BuildWith returns a registry holding the built-in definitions plus extra.
// Values must be unique across the whole registry.
func BuildWith(extra []models.OptionDefinition) (*Registry, error) {
	r := &Registry{defs: make(map[string]models.OptionDefinition, len(builtin)+len(extra))}
	for _, def := range builtin {
		if err := r.add(def); err != nil {
			return nil, err
		}
	}
	for _, def := range extra {
		if err := r.add(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(def models.OptionDefinition) error {
	if def.Kind == "" {
		def.Kind = models.OptionShort
	}
	if !def.Kind.Valid() {
		return fmt.Errorf("option %q: unknown kind %q", def.Value, def.Kind)
	}
	if def.Value == "" {
		return fmt.Errorf("option value cannot be empty")
	}
	if def.Keyword == "" {
		return fmt.Errorf("option %q: keyword cannot be empty", def.Value)
	}
	if _, exists := r.defs[def.Value]; exists {
		return fmt.Errorf("duplicate option value %q", def.Value)
	}
	r.defs[def.Value] = def
	return nil
}

// Lookup returns a copy of the definition registered for value.
func (r *Registry) Lookup(value string) (models.OptionDefinition, bool) {
	def, ok := r.defs[value]
	return def, ok
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Definitions returns copies of all definitions sorted by value.
func (r *Registry) Definitions() []models.OptionDefinition {
	out := make([]models.OptionDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// file is the on-disk layout of a registry extension file.
type file struct {
	Options []models.OptionDefinition `yaml:"options"`
}

// LoadFile reads extra option definitions from a YAML file of the form:
//
//	options:
//	  - kind: short
//	    value: V
//	    keyword: version
func LoadFile(path string) ([]models.OptionDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}
	return f.Options, nil
}
