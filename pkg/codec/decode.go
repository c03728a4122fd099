package codec

import (
	"fmt"
	"reflect"
	"unicode/utf8"
)

var byteType = reflect.TypeOf(byte(0))

type decoder struct {
	r *Reader
	// offsets is nil unless the caller asked for a Layout.
	offsets *offsetTracker
	// elements counts the collections and fixed arrays entered since the
	// innermost struct began. Markers inside their elements are part of
	// the field's region and get no entry of their own.
	elements int
}

func (d *decoder) tracking() bool {
	return d.offsets != nil && d.elements == 0
}

func (d *decoder) addLen(off int) error {
	if !d.tracking() {
		return nil
	}
	return d.offsets.addLen(off, 2)
}

func (d *decoder) beginElement() {
	if d.offsets != nil {
		d.offsets.beginElement()
	}
}

func (boolShape) decode(d *decoder, v reflect.Value) error {
	b, err := d.r.ReadBool()
	if err != nil {
		return err
	}
	v.SetBool(b)
	return nil
}

func (s intShape) decode(d *decoder, v reflect.Value) error {
	x, err := d.r.readUint(s.size)
	if err != nil {
		return err
	}
	switch s.size {
	case 1:
		v.SetInt(int64(int8(x)))
	case 2:
		v.SetInt(int64(int16(x)))
	case 4:
		v.SetInt(int64(int32(x)))
	default:
		v.SetInt(int64(x))
	}
	return nil
}

func (s uintShape) decode(d *decoder, v reflect.Value) error {
	x, err := d.r.readUint(s.size)
	if err != nil {
		return err
	}
	v.SetUint(x)
	return nil
}

func (s enumShape) decode(d *decoder, v reflect.Value) error {
	if err := s.base.decode(d, v); err != nil {
		return err
	}
	if !enumValue(v).Valid() {
		return fmt.Errorf("%w: %s(%v)", ErrInvalidVariant, s.typ, enumRaw(v))
	}
	return nil
}

// readCount reads a u16 count, registering its _len marker.
func (d *decoder) readCount() (int, error) {
	if err := d.addLen(d.r.Offset()); err != nil {
		return 0, err
	}
	n, err := d.r.ReadU16()
	return int(n), err
}

func (d *decoder) readByteCollection() ([]byte, error) {
	n, err := d.readCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return d.r.ReadBytes(n)
}

func (textShape) decode(d *decoder, v reflect.Value) error {
	b, err := d.readByteCollection()
	if err != nil {
		return err
	}
	if !utf8.Valid(b) {
		return ErrInvalidUTF8
	}
	v.SetString(string(b))
	return nil
}

func (bytesShape) decode(d *decoder, v reflect.Value) error {
	b, err := d.readByteCollection()
	if err != nil {
		return err
	}
	if b == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	v.SetBytes(b)
	return nil
}

func (s sliceShape) decode(d *decoder, v reflect.Value) error {
	n, err := d.readCount()
	if err != nil {
		return err
	}
	if n == 0 {
		v.Set(reflect.Zero(s.typ))
		return nil
	}
	out := reflect.MakeSlice(s.typ, n, n)
	d.elements++
	defer func() { d.elements-- }()
	for i := 0; i < n; i++ {
		d.beginElement()
		if err := s.elem.decode(d, out.Index(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	v.Set(out)
	return nil
}

func (s arrayShape) decode(d *decoder, v reflect.Value) error {
	if s.bytes {
		b, err := d.r.ReadBytes(s.n)
		if err != nil {
			return err
		}
		dst := v.Slice(0, s.n)
		if dst.Type().Elem() == byteType {
			reflect.Copy(dst, reflect.ValueOf(b))
			return nil
		}
		for i, x := range b {
			dst.Index(i).SetUint(uint64(x))
		}
		return nil
	}
	d.elements++
	defer func() { d.elements-- }()
	for i := 0; i < s.n; i++ {
		d.beginElement()
		if err := s.elem.decode(d, v.Index(i)); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (s optionShape) decode(d *decoder, v reflect.Value) error {
	present, err := d.r.ReadBool()
	if err != nil {
		return err
	}
	if d.tracking() {
		if err := d.offsets.addOption(d.r.Offset()-1, 1, present); err != nil {
			return err
		}
	}
	if !present {
		v.Set(reflect.Zero(s.typ))
		return nil
	}
	elem := reflect.New(s.typ.Elem())
	if err := s.elem.decode(d, elem.Elem()); err != nil {
		return err
	}
	v.Set(elem)
	return nil
}

func (s *structShape) decode(d *decoder, v reflect.Value) error {
	outer := d.elements
	d.elements = 0
	defer func() { d.elements = outer }()

	if d.offsets != nil {
		if err := d.offsets.beginStruct(s.name, s.names, d.r.Offset()); err != nil {
			return err
		}
	}
	for _, f := range s.fields {
		if d.offsets != nil {
			if err := d.offsets.addField(d.r.Offset()); err != nil {
				return err
			}
		}
		if err := f.shape.decode(d, v.Field(f.index)); err != nil {
			return fmt.Errorf("%s.%s: %w", s.name, f.name, err)
		}
	}
	if d.offsets != nil {
		return d.offsets.finishStruct(d.r.Offset())
	}
	return nil
}

func enumRaw(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	default:
		return v.Uint()
	}
}
