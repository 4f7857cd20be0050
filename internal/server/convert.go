package server

import (
	"encoding/json"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// args reads typed fields from a request struct
type args map[string]any

func newArgs(req *structpb.Struct) args {
	if req == nil {
		return args{}
	}
	return args(req.AsMap())
}

func missing(key string) error {
	return status.Errorf(codes.InvalidArgument, "%s is required", key)
}

func invalid(key, want string) error {
	return status.Errorf(codes.InvalidArgument, "%s must be %s", key, want)
}

// str returns a required non-empty string field
func (a args) str(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", missing(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(key, "a string")
	}
	if s == "" {
		return "", missing(key)
	}
	return s, nil
}

// optStr returns an optional string field, empty when absent
func (a args) optStr(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(key, "a string")
	}
	return s, nil
}

func (a args) boolean(key string) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalid(key, "a bool")
	}
	return b, nil
}

// integer returns an optional whole-number field, def when absent
func (a args) integer(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, invalid(key, "an integer")
	}
	return int(f), nil
}

// object returns an optional struct field, empty when absent
func (a args) object(key string) (map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalid(key, "an object")
	}
	return m, nil
}

// encode converts a response value into a Struct through its JSON form
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}
