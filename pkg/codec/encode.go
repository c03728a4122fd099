package codec

import (
	"fmt"
	"math"
	"reflect"
)

type encoder struct {
	w *Writer
}

func (e *encoder) writeCount(n int) error {
	if n > math.MaxUint16 {
		return fmt.Errorf("%w: %d elements", ErrLengthOverflow, n)
	}
	return e.w.WriteU16(uint16(n))
}

func (boolShape) encode(e *encoder, v reflect.Value) error {
	return e.w.WriteBool(v.Bool())
}

func (s intShape) encode(e *encoder, v reflect.Value) error {
	return e.w.writeUint(uint64(v.Int()), s.size)
}

func (s uintShape) encode(e *encoder, v reflect.Value) error {
	return e.w.writeUint(v.Uint(), s.size)
}

func (s enumShape) encode(e *encoder, v reflect.Value) error {
	if !enumValue(v).Valid() {
		return fmt.Errorf("%w: %s(%v)", ErrInvalidVariant, s.typ, enumRaw(v))
	}
	return s.base.encode(e, v)
}

func (textShape) encode(e *encoder, v reflect.Value) error {
	str := v.String()
	if err := e.writeCount(len(str)); err != nil {
		return err
	}
	return e.w.WriteBytes([]byte(str))
}

func (bytesShape) encode(e *encoder, v reflect.Value) error {
	if err := e.writeCount(v.Len()); err != nil {
		return err
	}
	return e.w.WriteBytes(v.Bytes())
}

func (s sliceShape) encode(e *encoder, v reflect.Value) error {
	n := v.Len()
	if err := e.writeCount(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := s.elem.encode(e, v.Index(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (s arrayShape) encode(e *encoder, v reflect.Value) error {
	if s.bytes && v.CanAddr() {
		return e.w.WriteBytes(v.Slice(0, s.n).Bytes())
	}
	for i := 0; i < s.n; i++ {
		if err := s.elem.encode(e, v.Index(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (s optionShape) encode(e *encoder, v reflect.Value) error {
	if v.IsNil() {
		return e.w.WriteBool(false)
	}
	if err := e.w.WriteBool(true); err != nil {
		return err
	}
	return s.elem.encode(e, v.Elem())
}

func (s *structShape) encode(e *encoder, v reflect.Value) error {
	for _, f := range s.fields {
		if err := f.shape.encode(e, v.Field(f.index)); err != nil {
			return fmt.Errorf("%s.%s: %w", s.name, f.name, err)
		}
	}
	return nil
}
