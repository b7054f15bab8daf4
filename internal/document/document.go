// Package document encodes and decodes portable chain documents.
package document

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/attackchain/internal/expressions"
	"github.com/rendis/attackchain/internal/validation"
	"github.com/rendis/attackchain/pkg/schema"
)

// Codec converts chain documents to and from JSON. Decoding is strict:
// the raw bytes are checked against the chain document schema before the
// document is accepted.
type Codec struct {
	validator validation.DocumentValidator
	jq        *expressions.GoJQEngine
}

// NewCodec builds a codec with the compiled chain document schema.
func NewCodec() (*Codec, error) {
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Codec{validator: v, jq: expressions.NewGoJQEngine()}, nil
}

// Encode serializes doc as indented JSON.
func (c *Codec) Encode(doc *schema.ChainDocument) ([]byte, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "chain document is nil")
	}
	out := *doc
	if out.Version == 0 {
		out.Version = schema.DocumentVersion
	}
	if out.Nodes == nil {
		out.Nodes = []schema.Node{}
	}
	if out.Edges == nil {
		out.Edges = []schema.Edge{}
	}
	if err := c.validator.ValidateDocument(&out); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode chain document: %w", err)
	}
	return b, nil
}

// Decode parses and validates a chain document. A missing viewport decodes
// as the identity transform.
func (c *Codec) Decode(data []byte) (*schema.ChainDocument, error) {
	if err := c.validator.ValidateJSON(data); err != nil {
		return nil, err
	}

	var doc schema.ChainDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode chain document").WithCause(err)
	}
	if doc.Version > schema.DocumentVersion {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"chain document version %d is newer than supported version %d", doc.Version, schema.DocumentVersion)
	}
	if doc.Viewport.Scale == 0 {
		doc.Viewport.Scale = 1
	}
	for i := range doc.Nodes {
		if doc.Nodes[i].Status == "" {
			doc.Nodes[i].Status = schema.NodeStatusPending
		}
	}
	for i := range doc.Edges {
		if doc.Edges[i].Type == "" {
			doc.Edges[i].Type = schema.EdgeTypeDefault
		}
	}

	if err := c.validator.ValidateDocument(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Query runs a jq expression over the JSON form of doc, e.g.
// `[.nodes[] | select(.template.severity == "critical") | .id]`.
func (c *Codec) Query(ctx context.Context, doc *schema.ChainDocument, expression string) (any, error) {
	return c.jq.Query(ctx, expression, doc)
}
