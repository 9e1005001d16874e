// Package codec registers a JSON codec so services can be served over gRPC
// with plain Go message structs.
package codec

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the content subtype clients select with grpc.CallContentSubtype.
const Name = "json"

// JSON marshals messages with encoding/json.
type JSON struct{}

func init() {
	encoding.RegisterCodec(JSON{})
}

// Marshal implements encoding.Codec.
func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (JSON) Name() string {
	return Name
}
