package mapdata

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the generated catalogue schema.
const SchemaID = "https://omdmaps.github.io/pipeline/official-map-data.schema.json"

// Schema returns the JSON Schema of OfficialMapData, indented with two
// spaces. Every field without omitempty is required.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{}
	s := r.Reflect(&OfficialMapData{})
	s.ID = SchemaID
	s.Title = "OfficialMapData"

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return out, nil
}
