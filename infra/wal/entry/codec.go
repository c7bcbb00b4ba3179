package entry

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodePayload serializes command fields as a protobuf Struct.
func EncodePayload(fields map[string]string) ([]byte, error) {
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "entry: build payload")
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func DecodePayload(data []byte) (map[string]string, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "entry: decode payload")
	}
	out := make(map[string]string, len(s.GetFields()))
	for k, v := range s.GetFields() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, errors.Newf("entry: field %q is not a string", k)
		}
		out[k] = sv.StringValue
	}
	return out, nil
}
