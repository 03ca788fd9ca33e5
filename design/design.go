// Package design defines the Design Specification schema: the structured
// JSON artifact produced for every generated or modified UI design.
//
// A Specification is created only by the generation service and is immutable
// afterwards; modifications produce a new Specification linked to its parent
// via ParentID. Renderers (browser preview, design-tool plugin) consume the
// same JSON, so unknown top-level fields are carried through unmarshal and
// marshal rather than dropped.
package design

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout defaults applied when the model omits them.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 800
	DefaultBackground = "#ffffff"
)

// Layout describes the overall canvas of a design.
type Layout struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
}

// Component is one UI element inside a Specification. Type is an open
// string ("button", "input", "card", ...) and Properties is an open bag
// whose shape depends on Type — the model's vocabulary grows faster than
// any closed schema could.
type Component struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Specification is the canonical unit of output.
//
// ID, Timestamp and Prompt are stamped server-side, overwriting anything
// the model supplied. ParentID and Modification are set only on designs
// derived from a prior one. Extra holds unrecognized top-level fields.
type Specification struct {
	ID                string
	Type              string
	Title             string
	Description       string
	Components        []Component
	Layout            Layout
	Prompt            string
	Timestamp         time.Time
	ParentID          string
	Modification      string
	FigmaInstructions []string
	Extra             map[string]json.RawMessage
}

// Parse decodes untrusted model output into a Specification. It rejects
// payloads that are not a JSON object or whose components field is not a
// sequence; there is no partial recovery. Nil components are normalized to
// an empty slice and layout defaults are applied.
func Parse(raw []byte) (*Specification, error) {
	var s Specification
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("design: parse: %w", err)
	}
	s.normalize()
	return &s, nil
}

func (s *Specification) normalize() {
	if s.Components == nil {
		s.Components = []Component{}
	}
	if s.Layout.Width <= 0 {
		s.Layout.Width = DefaultWidth
	}
	if s.Layout.Height <= 0 {
		s.Layout.Height = DefaultHeight
	}
	if s.Layout.Background == "" {
		s.Layout.Background = DefaultBackground
	}
}

// knownFields are the top-level keys owned by the schema. Everything else
// is preserved in Extra.
var knownFields = []string{
	"id", "type", "title", "description", "components", "layout",
	"prompt", "timestamp", "parentId", "modification", "figmaInstructions",
}

// UnmarshalJSON decodes a Specification, keeping unrecognized top-level
// fields in Extra so downstream renderers never lose data.
func (s *Specification) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("design: specification is not a JSON object: %w", err)
	}
	if m == nil {
		return fmt.Errorf("design: specification is not a JSON object: got null")
	}

	fields := map[string]any{
		"type":              &s.Type,
		"title":             &s.Title,
		"description":       &s.Description,
		"layout":            &s.Layout,
		"parentId":          &s.ParentID,
		"modification":      &s.Modification,
		"figmaInstructions": &s.FigmaInstructions,
	}
	for key, dst := range fields {
		raw, ok := m[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("design: field %q: %w", key, err)
		}
		delete(m, key)
	}

	// Stamped server-side and overwritten regardless of what the model put
	// there, so a type-mismatched hallucination in these fields is discarded
	// rather than failing the design.
	lenient := map[string]any{
		"id":        &s.ID,
		"prompt":    &s.Prompt,
		"timestamp": &s.Timestamp,
	}
	for key, dst := range lenient {
		raw, ok := m[key]
		if !ok {
			continue
		}
		_ = json.Unmarshal(raw, dst)
		delete(m, key)
	}

	if raw, ok := m["components"]; ok {
		if err := json.Unmarshal(raw, &s.Components); err != nil {
			return fmt.Errorf("design: components is not a sequence: %w", err)
		}
		delete(m, "components")
	}

	if len(m) > 0 {
		s.Extra = m
	} else {
		s.Extra = nil
	}
	return nil
}

// MarshalJSON emits the schema fields plus any preserved Extra fields.
// Schema fields win on name collision, so a hallucinated "id" in Extra can
// never shadow the server-stamped one.
func (s Specification) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(s.Extra)+len(knownFields))
	for k, v := range s.Extra {
		m[k] = v
	}

	components := s.Components
	if components == nil {
		components = []Component{}
	}

	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("design: marshal %q: %w", key, err)
		}
		m[key] = raw
		return nil
	}
	always := map[string]any{
		"id":          s.ID,
		"type":        s.Type,
		"title":       s.Title,
		"description": s.Description,
		"components":  components,
		"layout":      s.Layout,
		"prompt":      s.Prompt,
		"timestamp":   s.Timestamp,
	}
	for key, v := range always {
		if err := set(key, v); err != nil {
			return nil, err
		}
	}
	if s.ParentID != "" {
		if err := set("parentId", s.ParentID); err != nil {
			return nil, err
		}
	} else {
		delete(m, "parentId")
	}
	if s.Modification != "" {
		if err := set("modification", s.Modification); err != nil {
			return nil, err
		}
	} else {
		delete(m, "modification")
	}
	if len(s.FigmaInstructions) > 0 {
		if err := set("figmaInstructions", s.FigmaInstructions); err != nil {
			return nil, err
		}
	} else {
		delete(m, "figmaInstructions")
	}

	return json.Marshal(m)
}
