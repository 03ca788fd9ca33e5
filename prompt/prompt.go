// Package prompt composes the instruction messages sent to the external
// chat model. Instructions and user text are kept as two distinct message
// roles so model role semantics stay clean.
package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/draftwire/draftwire/design"
)

// structuralContract steers the model's free-text output toward the exact
// JSON shape the design schema expects. Appended to every system instruction.
const structuralContract = `

Return a JSON object with the following structure:
{
  "type": "design-type",
  "title": "Design Title",
  "description": "Brief description",
  "components": [
    {
      "id": "unique-id",
      "type": "component-type",
      "properties": {
        "text": "content",
        "style": "styling-info",
        "position": "layout-info"
      }
    }
  ],
  "layout": {
    "width": 1200,
    "height": 800,
    "background": "#ffffff"
  },
  "figmaInstructions": [
    "Step-by-step instructions for the design tool plugin"
  ]
}
Respond with the JSON object only.`

// ComposeGeneration builds the message pair for a fresh generation: the
// archetype system instruction for designType (generic fallback for unknown
// hints) plus the structural contract, and the verbatim user text.
func (r *Registry) ComposeGeneration(designType, userText string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(r.System(designType) + structuralContract),
		schema.UserMessage(userText),
	}
}

// ComposeModification builds the message pair for deriving a new design from
// a prior one. The full prior specification is serialized into the user
// message (never a diff) and the model is asked for a complete replacement
// in the same shape, so the receiving side only ever replaces and re-renders.
func (r *Registry) ComposeModification(prior *design.Specification, editText string) ([]*schema.Message, error) {
	priorJSON, err := json.Marshal(prior)
	if err != nil {
		return nil, fmt.Errorf("prompt: serialize prior design: %w", err)
	}
	user := fmt.Sprintf(
		"Modify the following design based on this request: %q\n\nOriginal design: %s\n\nReturn the complete modified design in the same JSON format.",
		editText, priorJSON)
	return []*schema.Message{
		schema.SystemMessage(r.System(prior.Type) + structuralContract),
		schema.UserMessage(user),
	}, nil
}
