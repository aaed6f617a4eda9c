package events

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go Event struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Event{})
	s.ID = "https://github.com/ormasoftchile/runlens/schemas/events-v1.json"
	s.Title = "Runlens Pipeline Event v1"
	s.Description = "Schema for lifecycle events streamed by the offer pipeline (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal event schema: %w", err)
	}
	return data, nil
}
