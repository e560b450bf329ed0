package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// messageSchema accepts the two inbound shapes: a single chunk
// (chunkId + text) or a batch (texts + chunkIds).
const messageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["documentId", "tenantId"],
  "properties": {
    "tenantId":   {"type": "string"},
    "documentId": {"type": "string"},
    "modelName":  {"type": ["string", "null"]},
    "chunkId":    {"type": "string"},
    "text":       {"type": "string"},
    "texts":      {"type": "array", "items": {"type": "string"}},
    "chunkIds":   {"type": "array", "items": {"type": "string"}}
  },
  "oneOf": [
    {"required": ["chunkId", "text"], "not": {"anyOf": [{"required": ["texts"]}, {"required": ["chunkIds"]}]}},
    {"required": ["texts", "chunkIds"], "not": {"anyOf": [{"required": ["text"]}, {"required": ["chunkId"]}]}}
  ]
}`

var schema = mustCompileSchema(messageSchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("model: compiling message schema: %v", err))
	}
	return compiled
}

// InboundMessage is the wire form of an inbound request.
type InboundMessage struct {
	TenantID   string   `json:"tenantId"`
	DocumentID string   `json:"documentId"`
	ModelName  *string  `json:"modelName,omitempty"`
	ChunkID    string   `json:"chunkId,omitempty"`
	Text       *string  `json:"text,omitempty"`
	Texts      []string `json:"texts,omitempty"`
	ChunkIDs   []string `json:"chunkIds,omitempty"`
}

// DecodeMessage parses and validates an inbound payload. Payloads that are not
// JSON or match neither shape fail with ErrMalformedMessage; well-formed
// payloads describing an invalid request fail with the NewEmbeddingRequest
// errors.
func DecodeMessage(data []byte) (EmbeddingRequest, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return EmbeddingRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return EmbeddingRequest{}, fmt.Errorf("%w: %s", ErrMalformedMessage, strings.Join(msgs, "; "))
	}

	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return EmbeddingRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	modelName := ""
	if msg.ModelName != nil {
		modelName = *msg.ModelName
	}

	if msg.Text != nil {
		req, err := NewEmbeddingRequest(msg.TenantID, msg.DocumentID, modelName, []string{*msg.Text}, []string{msg.ChunkID})
		if err != nil {
			return EmbeddingRequest{}, err
		}
		req.single = true
		return req, nil
	}
	return NewEmbeddingRequest(msg.TenantID, msg.DocumentID, modelName, msg.Texts, msg.ChunkIDs)
}
