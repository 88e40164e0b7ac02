// Package argenc produces a deterministic textual encoding of arbitrary
// argument values for cache key derivation. The encoding is stable across
// process runs and map iteration orders; it is not meant to be decoded.
package argenc

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// ErrUnsupported marks a value that has no deterministic representation
// (functions, channels, unsafe pointers).
var ErrUnsupported = errors.New("argenc: unsupported value")

// Value appends the canonical encoding of v to buf.
func Value(buf *bytes.Buffer, v any) error {
	if v == nil {
		buf.WriteString("nil")
		return nil
	}
	e := encoder{seen: make(map[uintptr]struct{})}
	return e.value(buf, reflect.ValueOf(v))
}

type encoder struct {
	// pointers/maps/slices on the current encoding path, to cut cycles
	seen map[uintptr]struct{}
}

func (e *encoder) value(buf *bytes.Buffer, v reflect.Value) error {
	if !v.IsValid() {
		buf.WriteString("nil")
		return nil
	}

	// Types that declare their own stable textual form win over the
	// structural encoding (time.Time, net.IP, ...).
	if v.CanInterface() {
		if tm, ok := v.Interface().(encoding.TextMarshaler); ok {
			b, err := tm.MarshalText()
			if err == nil {
				buf.WriteString(v.Type().String())
				buf.WriteByte('(')
				buf.Write(b)
				buf.WriteByte(')')
				return nil
			}
			// fall through to structural encoding
		}
	}

	switch v.Kind() {
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		buf.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		buf.WriteString(strconv.FormatComplex(v.Complex(), 'g', -1, 128))
	case reflect.String:
		buf.WriteString(strconv.Quote(v.String()))

	case reflect.Interface:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		return e.value(buf, v.Elem())

	case reflect.Pointer:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		p := v.Pointer()
		if e.enter(p) {
			buf.WriteString("cycle")
			return nil
		}
		buf.WriteByte('&')
		err := e.value(buf, v.Elem())
		e.leave(p)
		return err

	case reflect.Slice:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			buf.WriteString("0x")
			buf.WriteString(fmt.Sprintf("%x", v.Bytes()))
			return nil
		}
		p := v.Pointer()
		if e.enter(p) {
			buf.WriteString("cycle")
			return nil
		}
		err := e.list(buf, v)
		e.leave(p)
		return err

	case reflect.Array:
		return e.list(buf, v)

	case reflect.Map:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		p := v.Pointer()
		if e.enter(p) {
			buf.WriteString("cycle")
			return nil
		}
		err := e.mapValue(buf, v)
		e.leave(p)
		return err

	case reflect.Struct:
		buf.WriteString(v.Type().String())
		buf.WriteByte('{')
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(t.Field(i).Name)
			buf.WriteByte(':')
			if err := e.value(buf, v.Field(i)); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	default:
		// Chan, Func, UnsafePointer
		return fmt.Errorf("%w: %s", ErrUnsupported, v.Kind())
	}
	return nil
}

func (e *encoder) list(buf *bytes.Buffer, v reflect.Value) error {
	buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := e.value(buf, v.Index(i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// mapValue encodes entries sorted by the encoded form of their keys, so two
// maps with equal contents encode identically regardless of insertion or
// iteration order.
func (e *encoder) mapValue(buf *bytes.Buffer, v reflect.Value) error {
	type entry struct{ k, val string }
	entries := make([]entry, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		var kb, vb bytes.Buffer
		if err := e.value(&kb, iter.Key()); err != nil {
			return err
		}
		if err := e.value(&vb, iter.Value()); err != nil {
			return err
		}
		entries = append(entries, entry{k: kb.String(), val: vb.String()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })

	buf.WriteString("map[")
	for i, en := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(en.k)
		buf.WriteByte(':')
		buf.WriteString(en.val)
	}
	buf.WriteByte(']')
	return nil
}

// enter/leave scope cycle detection to the current path. A pointer only
// counts as a cycle while it is an ancestor of the value being encoded;
// siblings aliasing the same pointer (two map values, two slice elements)
// each get the full encoding, keeping the output independent of visit order.
func (e *encoder) enter(p uintptr) bool {
	if _, ok := e.seen[p]; ok {
		return true
	}
	e.seen[p] = struct{}{}
	return false
}

func (e *encoder) leave(p uintptr) {
	delete(e.seen, p)
}
