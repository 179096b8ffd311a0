// Package grpc implements the gRPC transport (the other half of
// component C9): the same internal/service facade REST uses, exposed
// over a hand-written grpc.ServiceDesc instead of protoc-generated
// stubs. No .proto sources exist anywhere in the retrieved pack for this
// domain, so rather than invent one, requests and responses are plain Go
// structs carried by a codec that marshals them as JSON — the RPC
// framing (method routing, streaming, deadlines, interceptors) comes
// from google.golang.org/grpc; only the wire encoding is swapped out.
// See DESIGN.md's C9 entry for the Open Question resolution this
// records.
package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec implements encoding.Codec, letting grpc-go carry our plain
// request/response structs without a .proto-generated marshaler.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpc: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("grpc: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
