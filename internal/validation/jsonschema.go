package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/attackchain/pkg/schema"
)

const documentSchemaURL = "https://attackchain.dev/schemas/chain.json"

// documentSchemaJSON is the JSON Schema for exported chain documents.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://attackchain.dev/schemas/chain.json",
  "type": "object",
  "required": ["version", "nodes", "edges"],
  "properties": {
    "version": { "type": "integer", "minimum": 1 },
    "id": { "type": "string" },
    "name": { "type": "string" },
    "description": { "type": "string" },
    "objectives": { "type": "array", "items": { "type": "string" } },
    "nodes": { "type": ["array", "null"], "items": { "$ref": "#/$defs/node" } },
    "edges": { "type": ["array", "null"], "items": { "$ref": "#/$defs/edge" } },
    "viewport": { "$ref": "#/$defs/viewport" }
  },
  "additionalProperties": false,
  "$defs": {
    "point": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": { "type": "number" },
        "y": { "type": "number" }
      },
      "additionalProperties": false
    },
    "node": {
      "type": "object",
      "required": ["id", "template", "position"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "template": { "$ref": "#/$defs/template" },
        "position": { "$ref": "#/$defs/point" },
        "order": { "type": "integer", "minimum": 0 },
        "status": {
          "type": "string",
          "enum": ["pending", "running", "completed", "error"]
        }
      },
      "additionalProperties": false
    },
    "template": {
      "type": "object",
      "required": ["id", "severity"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "category": { "type": "string" },
        "severity": {
          "type": "string",
          "enum": ["low", "medium", "high", "critical"]
        },
        "icon": { "type": "string" },
        "estimated_time": {
          "type": "object",
          "properties": {
            "min": { "type": "integer", "minimum": 0 },
            "max": { "type": "integer", "minimum": 0 }
          },
          "additionalProperties": false
        },
        "prerequisites": { "type": "array", "items": { "type": "string" } },
        "payloads": { "type": "array", "items": { "type": "string" } },
        "techniques": { "type": "array", "items": { "type": "string" } }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["from", "to"],
      "properties": {
        "id": { "type": "string" },
        "from": { "type": "string", "minLength": 1 },
        "to": { "type": "string", "minLength": 1 },
        "type": {
          "type": "string",
          "enum": ["default", "success", "error", "sequence", "parallel", "conditional"]
        },
        "label": { "type": "string" }
      },
      "additionalProperties": false
    },
    "viewport": {
      "type": "object",
      "properties": {
        "scale": { "type": "number", "minimum": 0.3, "maximum": 2.0 },
        "offset": { "$ref": "#/$defs/point" }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator implements DocumentValidator using JSON Schema Draft
// 2020-12. The compiled schema is immutable, so it is safe for concurrent use.
type JSONSchemaValidator struct {
	documentSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the chain document schema
// pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal chain schema: %w", err)
	}
	if err := c.AddResource(documentSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add chain schema resource: %w", err)
	}

	compiled, err := c.Compile(documentSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile chain schema: %w", err)
	}
	return &JSONSchemaValidator{documentSchema: compiled}, nil
}

// ValidateJSON validates raw document bytes against the schema.
func (v *JSONSchemaValidator) ValidateJSON(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "chain document is not valid JSON").WithCause(err)
	}
	if err := v.documentSchema.Validate(doc); err != nil {
		return toChainError(err)
	}
	return nil
}

// ValidateDocument validates a decoded document. Structural checks JSON
// Schema cannot express (duplicate node ids) run after the schema pass.
func (v *JSONSchemaValidator) ValidateDocument(doc *schema.ChainDocument) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "chain document is nil")
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize chain document").WithCause(err)
	}
	if err := v.ValidateJSON(b); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if _, exists := seen[n.ID]; exists {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate node id %q", n.ID).WithNode(n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

// toChainError converts a jsonschema.ValidationError into a ChainError
// listing each leaf violation with its instance location.
func toChainError(err error) *schema.ChainError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
