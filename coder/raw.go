package coder

import "fmt"

// Bytes is an identity coder for []byte values. Useful when wrapped
// functions already return raw payloads.
type Bytes struct{}

func (Bytes) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("coder: Bytes cannot encode %T", v)
	}
	return b, nil
}

func (Bytes) Decode(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("coder: Bytes cannot decode into %T", v)
	}
	*p = data
	return nil
}

// String is a trivial coder for string values. By convention this assumes
// UTF-8 and performs no validation. Encode also accepts []byte and
// fmt.Stringer.
type String struct{}

func (String) Encode(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	case fmt.Stringer:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("coder: String cannot encode %T", v)
	}
}

func (String) Decode(data []byte, v any) error {
	switch p := v.(type) {
	case *string:
		*p = string(data)
		return nil
	case *[]byte:
		*p = data
		return nil
	default:
		return fmt.Errorf("coder: String cannot decode into %T", v)
	}
}
