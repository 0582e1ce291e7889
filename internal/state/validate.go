package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// stateSchema is the boundary contract for inbound payloads: a JSON object
// carrying at least a status string. Extra fields are tolerated.
const stateSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["status"],
	"properties": {
		"status": {"type": "string", "minLength": 1},
		"now": {"$ref": "#/$defs/activity"},
		"next": {"$ref": "#/$defs/activity"},
		"at": {"type": "string"}
	},
	"$defs": {
		"activity": {
			"type": "object",
			"properties": {
				"title": {"type": "string"},
				"start": {"type": "string"},
				"end": {"type": "string"}
			}
		}
	}
}`

// Validator checks raw payloads against the state schema before anything
// reaches the store.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(stateSchema)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal state schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("state.schema.json", doc); err != nil {
		return nil, fmt.Errorf("add state schema: %w", err)
	}
	schema, err := compiler.Compile("state.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile state schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Decode validates raw JSON against the state schema and unmarshals it.
// All failures are boundary errors: the caller rejects the payload and the
// store is never touched.
func (v *Validator) Decode(raw []byte) (*State, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("invalid state payload: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &s, nil
}
