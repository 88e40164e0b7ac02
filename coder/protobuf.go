package coder

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes proto.Message values. Wrapped functions must return a
// concrete message pointer (e.g. *mypb.User); Decode allocates the message
// when the destination pointer is nil.
type Protobuf struct{}

func (Protobuf) Encode(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("coder: Protobuf cannot encode %T", v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Decode(data []byte, v any) error {
	// v may be the message itself or, from the decorator, a pointer to the
	// (possibly nil) message pointer.
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("coder: Protobuf cannot decode into %T", v)
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Pointer {
		return fmt.Errorf("coder: Protobuf cannot decode into %T", v)
	}
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	m, ok := elem.Interface().(proto.Message)
	if !ok {
		return fmt.Errorf("coder: Protobuf cannot decode into %T", v)
	}
	return proto.Unmarshal(data, m)
}
