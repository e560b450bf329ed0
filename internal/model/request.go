package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// EmbeddingRequest is one unit of work. It is immutable; build it with
// NewEmbeddingRequest.
type EmbeddingRequest struct {
	tenantID   string
	documentID string
	modelName  string
	texts      []string
	chunkIDs   []string
	// single is set when the request arrived in the chunkId/text shape.
	single bool
}

// NewEmbeddingRequest validates and copies its arguments. It fails with
// ErrChunkCountMismatch when texts and chunkIDs differ in length and with
// ErrInvalidRequest when the tenant or document id is empty. An empty text
// list is valid. modelName may be empty to select the default model.
func NewEmbeddingRequest(tenantID, documentID, modelName string, texts, chunkIDs []string) (EmbeddingRequest, error) {
	if tenantID == "" {
		return EmbeddingRequest{}, fmt.Errorf("%w: tenant id is empty", ErrInvalidRequest)
	}
	if documentID == "" {
		return EmbeddingRequest{}, fmt.Errorf("%w: document id is empty", ErrInvalidRequest)
	}
	if len(texts) != len(chunkIDs) {
		return EmbeddingRequest{}, fmt.Errorf("%w: %d texts, %d chunk ids", ErrChunkCountMismatch, len(texts), len(chunkIDs))
	}
	for i, id := range chunkIDs {
		if id == "" {
			return EmbeddingRequest{}, fmt.Errorf("%w: chunk id %d is empty", ErrInvalidRequest, i)
		}
	}
	return EmbeddingRequest{
		tenantID:   tenantID,
		documentID: documentID,
		modelName:  modelName,
		texts:      slices.Clone(texts),
		chunkIDs:   slices.Clone(chunkIDs),
	}, nil
}

func (r EmbeddingRequest) TenantID() string   { return r.tenantID }
func (r EmbeddingRequest) DocumentID() string { return r.documentID }

// ModelName is the requested model; it may be empty or unknown.
func (r EmbeddingRequest) ModelName() string { return r.modelName }

func (r EmbeddingRequest) Len() int { return len(r.texts) }

// Texts returns a copy of the texts in input order.
func (r EmbeddingRequest) Texts() []string { return slices.Clone(r.texts) }

// ChunkIDs returns a copy of the chunk ids in input order.
func (r EmbeddingRequest) ChunkIDs() []string { return slices.Clone(r.chunkIDs) }

// Text and ChunkID return the i-th entry without copying.
func (r EmbeddingRequest) Text(i int) string    { return r.texts[i] }
func (r EmbeddingRequest) ChunkID(i int) string { return r.chunkIDs[i] }

// Key is the message key used for completion and dead-letter records: the
// first chunk id, or the document id for an empty request.
func (r EmbeddingRequest) Key() string {
	if len(r.chunkIDs) > 0 {
		return r.chunkIDs[0]
	}
	return r.documentID
}

type requestJSON struct {
	TenantID   string   `json:"tenantId"`
	DocumentID string   `json:"documentId"`
	ModelName  string   `json:"modelName,omitempty"`
	Texts      []string `json:"texts"`
	ChunkIDs   []string `json:"chunkIds"`
}

type singleJSON struct {
	TenantID   string `json:"tenantId"`
	DocumentID string `json:"documentId"`
	ModelName  string `json:"modelName,omitempty"`
	ChunkID    string `json:"chunkId"`
	Text       string `json:"text"`
}

// MarshalJSON writes the request in the inbound shape it was decoded from, so
// a dead-lettered request can be replayed onto the inbound topic as is.
// Requests built with NewEmbeddingRequest use the batch shape.
func (r EmbeddingRequest) MarshalJSON() ([]byte, error) {
	if r.single && len(r.texts) == 1 {
		return json.Marshal(singleJSON{
			TenantID:   r.tenantID,
			DocumentID: r.documentID,
			ModelName:  r.modelName,
			ChunkID:    r.chunkIDs[0],
			Text:       r.texts[0],
		})
	}
	texts, chunks := r.texts, r.chunkIDs
	if texts == nil {
		texts = []string{}
	}
	if chunks == nil {
		chunks = []string{}
	}
	return json.Marshal(requestJSON{
		TenantID:   r.tenantID,
		DocumentID: r.documentID,
		ModelName:  r.modelName,
		Texts:      texts,
		ChunkIDs:   chunks,
	})
}
