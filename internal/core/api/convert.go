package api

import (
	"bytes"
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Requests and responses travel as google.protobuf.Struct. They are mapped
// to Go structs through their canonical JSON form: protojson on the
// Struct side, encoding/json with struct tags on the Go side. Numbers
// therefore arrive in records as float64, as they would from any JSON client.

// decodeRequest fills dst from in. Unknown fields are rejected.
func decodeRequest(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return invalidArgument("malformed request: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidArgument("malformed request: %v", err)
	}
	return nil
}

// encodeResponse converts v into a Struct.
func encodeResponse(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
