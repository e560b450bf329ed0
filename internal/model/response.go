package model

import "time"

// Status is the outcome of a result or a whole response.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// EmbeddingResult is the outcome for one text.
type EmbeddingResult struct {
	ChunkID string
	Text    string
	Vector  []float32
	Status  Status
	Error   string
}

// EmbeddingResponse is the outcome for a whole request. A FAILED response
// never carries results.
type EmbeddingResponse struct {
	TenantID       string
	DocumentID     string
	ModelName      string
	Results        []EmbeddingResult
	Status         Status
	Attempts       int
	ProcessingTime time.Duration
	Err            error
}

// SuccessResponse builds a SUCCESS response for req.
func SuccessResponse(req EmbeddingRequest, modelName string, results []EmbeddingResult, elapsed time.Duration) EmbeddingResponse {
	return EmbeddingResponse{
		TenantID:       req.TenantID(),
		DocumentID:     req.DocumentID(),
		ModelName:      modelName,
		Results:        results,
		Status:         StatusSuccess,
		ProcessingTime: elapsed,
	}
}

// FailedResponse builds a FAILED response for req with no results.
func FailedResponse(req EmbeddingRequest, modelName string, err error, elapsed time.Duration) EmbeddingResponse {
	return EmbeddingResponse{
		TenantID:       req.TenantID(),
		DocumentID:     req.DocumentID(),
		ModelName:      modelName,
		Results:        []EmbeddingResult{},
		Status:         StatusFailed,
		ProcessingTime: elapsed,
		Err:            err,
	}
}

func (r EmbeddingResponse) Succeeded() bool { return r.Status == StatusSuccess }

// Vectors returns the result vectors in result order.
func (r EmbeddingResponse) Vectors() [][]float32 {
	out := make([][]float32, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Vector
	}
	return out
}

// ChunkIDs returns the result chunk ids in result order.
func (r EmbeddingResponse) ChunkIDs() []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.ChunkID
	}
	return out
}
