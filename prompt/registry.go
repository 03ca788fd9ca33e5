package prompt

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Archetype system instructions for the known design types. Unrecognized or
// absent hints fall back to genericSystem.
const genericSystem = "You are an expert UI/UX designer. Create a detailed design specification based on the user's requirements."

var builtinArchetypes = map[string]string{
	"login":     "You are an expert UI/UX designer. Create a detailed design specification for a login screen based on the user's requirements.",
	"dashboard": "You are an expert UI/UX designer. Create a detailed design specification for a dashboard interface based on the user's requirements.",
	"landing":   "You are an expert UI/UX designer. Create a detailed design specification for a landing page based on the user's requirements.",
}

// archetypeFile is the YAML shape accepted by LoadFile.
type archetypeFile struct {
	Archetypes map[string]struct {
		System string `yaml:"system"`
	} `yaml:"archetypes"`
}

// Registry maps design-type hints to system instructions. The zero value is
// not usable; construct with NewRegistry.
type Registry struct {
	archetypes map[string]string
}

// NewRegistry returns a Registry seeded with the built-in archetypes
// (login, dashboard, landing).
func NewRegistry() *Registry {
	m := make(map[string]string, len(builtinArchetypes))
	for k, v := range builtinArchetypes {
		m[k] = v
	}
	return &Registry{archetypes: m}
}

// LoadFile merges archetypes from a YAML file over the built-ins. Entries
// with an empty system instruction are rejected.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("prompt: read archetypes: %w", err)
	}
	var f archetypeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("prompt: parse archetypes: %w", err)
	}
	for name, a := range f.Archetypes {
		if a.System == "" {
			return fmt.Errorf("prompt: archetype %q has no system instruction", name)
		}
		r.archetypes[name] = a.System
	}
	return nil
}

// System returns the system instruction for a design-type hint, falling back
// to the generic expert-designer instruction when the hint is unknown.
func (r *Registry) System(designType string) string {
	if s, ok := r.archetypes[designType]; ok {
		return s
	}
	return genericSystem
}

// Archetypes lists the registered design-type hints, sorted.
func (r *Registry) Archetypes() []string {
	names := make([]string, 0, len(r.archetypes))
	for name := range r.archetypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
