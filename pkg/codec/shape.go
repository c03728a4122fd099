package codec

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// Enum is implemented by integer types restricted to a closed variant set.
type Enum interface {
	Valid() bool
}

// ValueString names one enum variant.
type ValueString struct {
	Value  uint64
	String string
}

// EnumStrings may be implemented next to Enum to expose the variant table
// to Describe.
type EnumStrings interface {
	Strings() []ValueString
}

// shape knows how one Go type is laid out on the wire.
type shape interface {
	decode(d *decoder, v reflect.Value) error
	encode(e *encoder, v reflect.Value) error
	describe(name, abbrev string, opts fieldOpts) []FieldInfo
}

var (
	shapes   sync.Map // reflect.Type -> shape
	enumType = reflect.TypeOf((*Enum)(nil)).Elem()
)

// Register compiles and caches the wire layout of v's type, reporting
// unsupported types before any data is processed. Pointers are
// dereferenced once.
func Register(v any) error {
	t := reflect.TypeOf(v)
	if t == nil {
		return fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	_, err := shapeOf(t)
	return err
}

func shapeOf(t reflect.Type) (shape, error) {
	if s, ok := shapes.Load(t); ok {
		return s.(shape), nil
	}
	return compile(t, map[reflect.Type]bool{})
}

func compile(t reflect.Type, visiting map[reflect.Type]bool) (shape, error) {
	if s, ok := shapes.Load(t); ok {
		return s.(shape), nil
	}
	if visiting[t] {
		return nil, fmt.Errorf("%w: %s refers to itself", ErrUnsupportedType, t)
	}
	visiting[t] = true
	defer delete(visiting, t)

	s, err := build(t, visiting)
	if err != nil {
		return nil, err
	}
	actual, _ := shapes.LoadOrStore(t, s)
	return actual.(shape), nil
}

func build(t reflect.Type, visiting map[reflect.Type]bool) (shape, error) {
	if isEnum(t) {
		return buildEnum(t)
	}

	switch t.Kind() {
	case reflect.Bool:
		return boolShape{}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intShape{size: int(t.Size())}, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintShape{size: int(t.Size())}, nil
	case reflect.String:
		return textShape{}, nil
	case reflect.Slice:
		if isPlainByte(t.Elem()) {
			return bytesShape{}, nil
		}
		elem, err := compile(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return sliceShape{typ: t, elem: elem}, nil
	case reflect.Array:
		elem, err := compile(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return arrayShape{n: t.Len(), elem: elem, bytes: isPlainByte(t.Elem())}, nil
	case reflect.Pointer:
		elem, err := compile(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return optionShape{typ: t, elem: elem}, nil
	case reflect.Struct:
		return buildStruct(t, visiting)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

// isEnum reports whether t is an integer type implementing Enum. Other
// kinds with a Valid method keep their own shape.
func isEnum(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return t.Implements(enumType) || reflect.PointerTo(t).Implements(enumType)
	}
	return false
}

func isPlainByte(t reflect.Type) bool {
	return t.Kind() == reflect.Uint8 && !isEnum(t)
}

func buildEnum(t reflect.Type) (shape, error) {
	es := enumShape{typ: t}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		es.base = intShape{size: int(t.Size())}
	default:
		es.base = uintShape{size: int(t.Size())}
	}
	if s, ok := reflect.Zero(t).Interface().(EnumStrings); ok {
		es.strings = s.Strings()
	}
	return es, nil
}

func buildStruct(t reflect.Type, visiting map[reflect.Type]bool) (shape, error) {
	ss := &structShape{name: t.Name()}
	if ss.name == "" {
		ss.name = "struct"
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts := parseTag(f)
		if name == "-" {
			continue
		}
		fs, err := compile(f.Type, visiting)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t, f.Name, err)
		}
		ss.fields = append(ss.fields, structField{index: i, name: name, shape: fs, opts: opts})
		ss.names = append(ss.names, name)
	}
	return ss, nil
}

// fieldOpts are display hints carried in the wire tag.
type fieldOpts struct {
	text bool
	hex  bool
	// element is set below a collection or fixed array, where counts and
	// presence flags have no entry of their own.
	element bool
}

func parseTag(f reflect.StructField) (string, fieldOpts) {
	var opts fieldOpts
	tag, ok := f.Tag.Lookup("wire")
	if !ok {
		return snakeCase(f.Name), opts
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = snakeCase(f.Name)
	}
	for _, p := range parts[1:] {
		switch p {
		case "text":
			opts.text = true
		case "hex":
			opts.hex = true
		}
	}
	return name, opts
}

// snakeCase converts a Go identifier, keeping acronyms together:
// WriteSize -> write_size, IoctlID -> ioctl_id, BWR -> bwr.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type boolShape struct{}

type intShape struct {
	size int
}

type uintShape struct {
	size int
}

type enumShape struct {
	typ     reflect.Type
	base    shape
	strings []ValueString
}

type textShape struct{}

// bytesShape is the fast path for []byte collections.
type bytesShape struct{}

type sliceShape struct {
	typ  reflect.Type
	elem shape
}

type arrayShape struct {
	n     int
	elem  shape
	bytes bool
}

type optionShape struct {
	typ  reflect.Type
	elem shape
}

type structShape struct {
	name   string
	fields []structField
	names  []string
}

type structField struct {
	index int
	name  string
	shape shape
	opts  fieldOpts
}

// enumValue returns v as an Enum, taking its address when Valid has a
// pointer receiver.
func enumValue(v reflect.Value) Enum {
	if e, ok := v.Interface().(Enum); ok {
		return e
	}
	if v.CanAddr() {
		return v.Addr().Interface().(Enum)
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.Interface().(Enum)
}
