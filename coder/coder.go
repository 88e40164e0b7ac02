// Package coder converts cached values to and from storage payloads.
//
// A single Coder serves every wrapped result type in a process, so the
// interface is any-based with decode-into-pointer, the encoding/json shape.
// For every value a coder accepts, Decode(Encode(v), &out) must reproduce v
// structurally.
package coder

// Coder encodes/decodes values to []byte for storage.
type Coder interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}
