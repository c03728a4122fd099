package codec

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
)

// Layout is the offset tree produced next to a decoded value. Err is set
// when the tree could not be rebuilt even though the value decoded.
type Layout struct {
	Root *StructOffset
	Err  error
}

// Marshal encodes v. A pointer argument encodes the value it points to.
func Marshal(v any) ([]byte, error) {
	rv, s, err := source(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.encode(&encoder{w: NewWriter(&buf)}, rv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes v to w in a single write. Nothing reaches w if encoding
// fails.
func Write(w io.Writer, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	n, err := w.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	return err
}

// Unmarshal decodes data into the value pointed to by v. On error v is left
// untouched. A collection with a zero count decodes to a nil slice, so nil
// and empty slices encode identically and both come back as nil.
func Unmarshal(data []byte, v any) error {
	return Read(bytes.NewReader(data), v)
}

// Read decodes one value from r into the value pointed to by v.
func Read(r io.Reader, v any) error {
	rv, s, err := target(v)
	if err != nil {
		return err
	}
	tmp := reflect.New(rv.Type()).Elem()
	if err := s.decode(&decoder{r: NewReader(r)}, tmp); err != nil {
		return err
	}
	rv.Set(tmp)
	return nil
}

// UnmarshalWithOffsets decodes data like Unmarshal and also rebuilds the
// offset tree of the decoded struct.
func UnmarshalWithOffsets(data []byte, v any) (Layout, error) {
	return ReadWithOffsets(bytes.NewReader(data), v)
}

// ReadWithOffsets is the streaming form of UnmarshalWithOffsets. Offsets are
// relative to the first byte read from r.
func ReadWithOffsets(r io.Reader, v any) (Layout, error) {
	rv, s, err := target(v)
	if err != nil {
		return Layout{}, err
	}
	tmp := reflect.New(rv.Type()).Elem()
	d := &decoder{r: NewReader(r), offsets: &offsetTracker{}}
	if err := s.decode(d, tmp); err != nil {
		return Layout{}, err
	}
	rv.Set(tmp)

	root, err := d.offsets.take()
	return Layout{Root: root, Err: err}, nil
}

func target(v any) (reflect.Value, shape, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, nil, fmt.Errorf("%w: decode target must be a non-nil pointer, got %T",
			ErrUnsupportedType, v)
	}
	rv = rv.Elem()
	s, err := shapeOf(rv.Type())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return rv, s, nil
}

// source returns an addressable copy of v, or the pointee when v is a
// pointer.
func source(v any) (reflect.Value, shape, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Value{}, nil, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, nil, fmt.Errorf("%w: nil %T", ErrUnsupportedType, v)
		}
		rv = rv.Elem()
	} else {
		cp := reflect.New(rv.Type()).Elem()
		cp.Set(rv)
		rv = cp
	}
	s, err := shapeOf(rv.Type())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return rv, s, nil
}
