package index

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
)

// EmbeddingText is the text embedded for a record: name, description and
// test types.
func EmbeddingText(r *catalog.Record) string {
	return strings.Join([]string{r.Name, r.Description, strings.Join(r.TestType, " ")}, " ")
}

// EncodeRecord converts a record into index metadata.
func EncodeRecord(r *catalog.Record) (map[string]any, error) {
	metadata := make(map[string]any)
	if err := decode(r, &metadata); err != nil {
		return nil, fmt.Errorf("encode record metadata: %w", err)
	}
	return metadata, nil
}

// DecodeRecord converts index metadata back into a record. Metadata loaded
// from disk carries JSON types (float64 numbers, []any lists).
func DecodeRecord(metadata map[string]any) (*catalog.Record, error) {
	var record catalog.Record
	if err := decode(metadata, &record); err != nil {
		return nil, fmt.Errorf("decode record metadata: %w", err)
	}
	if record.URL == "" {
		return nil, fmt.Errorf("decode record metadata: missing url")
	}
	return &record, nil
}

func decode(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           output,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
