package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// FailureReason tags every dead-letter record and failure alert.
	FailureReason = "EMBEDDING_PROCESSING_FAILURE"

	SeverityHigh = "HIGH"
)

// CompletionEvent is published after a successful generation.
// Single-chunk requests additionally carry ChunkID and Embedding.
type CompletionEvent struct {
	TenantID         string      `json:"tenantId"`
	DocumentID       string      `json:"documentId"`
	ChunkID          string      `json:"chunkId,omitempty"`
	Embedding        []float32   `json:"embedding,omitempty"`
	ChunkIDs         []string    `json:"chunkIds"`
	Embeddings       [][]float32 `json:"embeddings"`
	Status           Status      `json:"status"`
	ModelName        string      `json:"modelName"`
	Attempts         int         `json:"attempts"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
	CompletedAt      time.Time   `json:"completedAt"`
}

// NewCompletionEvent builds the completion event for a successful response.
func NewCompletionEvent(resp EmbeddingResponse, completedAt time.Time) CompletionEvent {
	ev := CompletionEvent{
		TenantID:         resp.TenantID,
		DocumentID:       resp.DocumentID,
		ChunkIDs:         resp.ChunkIDs(),
		Embeddings:       resp.Vectors(),
		Status:           resp.Status,
		ModelName:        resp.ModelName,
		Attempts:         resp.Attempts,
		ProcessingTimeMs: resp.ProcessingTime.Milliseconds(),
		CompletedAt:      completedAt.UTC(),
	}
	if len(resp.Results) == 1 {
		ev.ChunkID = resp.Results[0].ChunkID
		ev.Embedding = resp.Results[0].Vector
	}
	return ev
}

// DeadLetterRecord is the replayable record of a request that exhausted its
// retry budget.
type DeadLetterRecord struct {
	DLQID           string           `json:"dlqId"`
	OriginalMessage EmbeddingRequest `json:"originalMessage"`
	ErrorType       string           `json:"errorType"`
	ErrorMessage    string           `json:"errorMessage"`
	AttemptCount    int              `json:"attemptCount"`
	FailureReason   string           `json:"failureReason"`
	FailedAt        time.Time        `json:"failedAt"`
}

// NewDeadLetterRecord builds a record with a fresh id.
func NewDeadLetterRecord(req EmbeddingRequest, lastErr error, attempts int, failedAt time.Time) DeadLetterRecord {
	return DeadLetterRecord{
		DLQID:           uuid.NewString(),
		OriginalMessage: req,
		ErrorType:       ErrorTypeName(lastErr),
		ErrorMessage:    errorMessage(lastErr),
		AttemptCount:    attempts,
		FailureReason:   FailureReason,
		FailedAt:        failedAt.UTC(),
	}
}

// FailureAlert is the operational alert for an exhausted request.
type FailureAlert struct {
	AlertID    string    `json:"alertId"`
	AlertType  string    `json:"alertType"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	TenantID   string    `json:"tenantId"`
	DocumentID string    `json:"documentId"`
	ChunkID    string    `json:"chunkId"`
	ChunkIDs   []string  `json:"chunkIds,omitempty"`
	ErrorType  string    `json:"errorType"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewFailureAlert builds an alert with a fresh id. ChunkID is the request key;
// batches also list every chunk id.
func NewFailureAlert(req EmbeddingRequest, lastErr error, attempts int, at time.Time) FailureAlert {
	alert := FailureAlert{
		AlertID:    uuid.NewString(),
		AlertType:  FailureReason,
		Message:    fmt.Sprintf("Failed to process embedding for chunk %s after %d attempts: %s", req.Key(), attempts, errorMessage(lastErr)),
		Severity:   SeverityHigh,
		TenantID:   req.TenantID(),
		DocumentID: req.DocumentID(),
		ChunkID:    req.Key(),
		ErrorType:  ErrorTypeName(lastErr),
		Timestamp:  at.UTC(),
	}
	if req.Len() > 1 {
		alert.ChunkIDs = req.ChunkIDs()
	}
	return alert
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
