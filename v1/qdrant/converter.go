package qdrant

import (
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
)

// Point is a vector with its id and payload, independent of the protobuf types.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// MatchAll builds a filter requiring every key to equal its keyword value.
// Keys are iterated in the order given by fields so the filter is deterministic.
func MatchAll(fields ...KeywordMatch) *qdrant.Filter {
	if len(fields) == 0 {
		return nil
	}
	conds := make([]*qdrant.Condition, 0, len(fields))
	for _, f := range fields {
		conds = append(conds, qdrant.NewMatch(f.Key, f.Value))
	}
	return &qdrant.Filter{Must: conds}
}

// KeywordMatch is an exact match on a keyword payload field.
type KeywordMatch struct {
	Key   string
	Value string
}

func toPointStruct(p Point) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: qdrant.NewValueMap(p.Payload),
	}
}

func fromRetrievedPoint(p *qdrant.RetrievedPoint) (Point, error) {
	id, err := extractPointID(p.GetId())
	if err != nil {
		return Point{}, err
	}
	return Point{
		ID:      id,
		Vector:  denseData(p.GetVectors().GetVector()),
		Payload: convertPayload(p.GetPayload()),
	}, nil
}

// denseData reads a dense vector from either the typed or the legacy field.
func denseData(v *qdrant.VectorOutput) []float32 {
	if d := v.GetDense(); d != nil {
		return d.GetData()
	}
	return v.GetData()
}

// extractPointID extracts a string ID from Qdrant's PointId type.
func extractPointID(id *qdrant.PointId) (string, error) {
	if id == nil {
		return "", fmt.Errorf("nil point ID")
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num), nil
	case *qdrant.PointId_Uuid:
		return v.Uuid, nil
	default:
		return "", fmt.Errorf("unexpected PointId type: %T", v)
	}
}

// convertPayload converts Qdrant's protobuf payload to a generic map.
func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		result[k] = extractValue(v)
	}
	return result
}

// extractValue recursively converts a Qdrant Value to a Go native type.
func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_StructValue:
		if val.StructValue == nil {
			return nil
		}
		return convertPayload(val.StructValue.Fields)
	case *qdrant.Value_ListValue:
		if val.ListValue == nil {
			return nil
		}
		items := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			items[i] = extractValue(item)
		}
		return items
	default:
		return nil
	}
}
