// File: api/brainrpc/codec.go
package brainrpc

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype under which the JSON codec is
// registered. Clients select it per call via grpc.CallContentSubtype; servers
// pick it up automatically from the request's content-type header.
const CodecName = "json"

// json is configured for standard-library compatibility so the wire format
// stays stable regardless of jsoniter's default extensions.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc encoding.Codec over JSON payloads. It exists so
// the module can speak the brain contract without carrying generated
// protobuf code.
type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecName }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("brainrpc: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("brainrpc: unmarshal %T: %w", v, err)
	}
	return nil
}
