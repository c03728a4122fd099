package codec

import (
	"fmt"
	"reflect"
)

// FieldType is the value type a dissector should register for a field.
type FieldType int

const (
	FtNone FieldType = iota
	FtProtocol
	FtBoolean
	FtU8
	FtU16
	FtU32
	FtU64
	FtI8
	FtI16
	FtI32
	FtI64
	FtString
	FtBytes
)

var fieldTypeNames = [...]string{
	FtNone:     "none",
	FtProtocol: "protocol",
	FtBoolean:  "bool",
	FtU8:       "u8",
	FtU16:      "u16",
	FtU32:      "u32",
	FtU64:      "u64",
	FtI8:       "i8",
	FtI16:      "i16",
	FtI32:      "i32",
	FtI64:      "i64",
	FtString:   "string",
	FtBytes:    "bytes",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// FieldDisplay is the preferred base or string rendering of a field.
type FieldDisplay int

const (
	DisplayNone FieldDisplay = iota
	DisplayDec
	DisplayHex
	DisplayDecHex
	DisplayHexDec
	DisplayASCII
	DisplaySepSpace
)

var fieldDisplayNames = [...]string{
	DisplayNone:     "none",
	DisplayDec:      "dec",
	DisplayHex:      "hex",
	DisplayDecHex:   "dec_hex",
	DisplayHexDec:   "hex_dec",
	DisplayASCII:    "ascii",
	DisplaySepSpace: "sep_space",
}

func (d FieldDisplay) String() string {
	if int(d) < len(fieldDisplayNames) {
		return fieldDisplayNames[d]
	}
	return fmt.Sprintf("FieldDisplay(%d)", int(d))
}

// FieldInfo describes one header field: a real field, a synthesized
// _len / _is_present marker, or a struct subtree label.
type FieldInfo struct {
	Name    string
	Abbrev  string
	Type    FieldType
	Display FieldDisplay
	Strings []ValueString
}

// Describe returns the header fields of v's type in wire order. The root
// struct is reported as a protocol entry named name with abbreviation
// abbrev, and nested fields use dotted abbreviations below it.
func Describe(v any, name, abbrev string) ([]FieldInfo, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s, err := shapeOf(t)
	if err != nil {
		return nil, err
	}
	info := s.describe(name, abbrev, fieldOpts{})
	if len(info) > 0 && info[0].Type == FtNone {
		if _, ok := s.(*structShape); ok {
			info[0].Type = FtProtocol
		}
	}
	return info, nil
}

func scalarInfo(name, abbrev string, ft FieldType, display FieldDisplay, opts fieldOpts) []FieldInfo {
	if opts.hex {
		display = DisplayHex
	}
	return []FieldInfo{{Name: name, Abbrev: abbrev, Type: ft, Display: display}}
}

func (boolShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	return []FieldInfo{{Name: name, Abbrev: abbrev, Type: FtBoolean}}
}

var (
	intTypes  = map[int]FieldType{1: FtI8, 2: FtI16, 4: FtI32, 8: FtI64}
	uintTypes = map[int]FieldType{1: FtU8, 2: FtU16, 4: FtU32, 8: FtU64}
)

func (s intShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	display := DisplayDec
	if s.size == 1 {
		display = DisplayHex
	}
	return scalarInfo(name, abbrev, intTypes[s.size], display, opts)
}

func (s uintShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	display := DisplayDec
	if s.size == 1 {
		display = DisplayHex
	}
	return scalarInfo(name, abbrev, uintTypes[s.size], display, opts)
}

func (s enumShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	info := s.base.describe(name, abbrev, opts)
	info[0].Display = DisplayDec
	if opts.hex {
		info[0].Display = DisplayHex
	}
	info[0].Strings = s.strings
	return info
}

func lengthInfo(name, abbrev string) FieldInfo {
	return FieldInfo{
		Name:    name + " length",
		Abbrev:  abbrev + "_len",
		Type:    FtU16,
		Display: DisplayHexDec,
	}
}

func (textShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	text := FieldInfo{Name: name, Abbrev: abbrev, Type: FtString, Display: DisplayASCII}
	if opts.element {
		return []FieldInfo{text}
	}
	return []FieldInfo{lengthInfo(name, abbrev), text}
}

func bytesInfo(name, abbrev string, opts fieldOpts) FieldInfo {
	if opts.text {
		return FieldInfo{Name: name, Abbrev: abbrev, Type: FtString, Display: DisplayASCII}
	}
	return FieldInfo{Name: name, Abbrev: abbrev, Type: FtBytes, Display: DisplaySepSpace}
}

func (bytesShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	if opts.element {
		return []FieldInfo{bytesInfo(name, abbrev, opts)}
	}
	return []FieldInfo{lengthInfo(name, abbrev), bytesInfo(name, abbrev, opts)}
}

func (s sliceShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	var info []FieldInfo
	if !opts.element {
		info = append(info, lengthInfo(name, abbrev))
	}
	opts.element = true
	return append(info, s.elem.describe(name, abbrev, opts)...)
}

func (s arrayShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	if s.bytes {
		return []FieldInfo{bytesInfo(name, abbrev, opts)}
	}
	opts.element = true
	return s.elem.describe(name, abbrev, opts)
}

func (s optionShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	if opts.element {
		return s.elem.describe(name, abbrev, opts)
	}
	present := FieldInfo{
		Name:   name + " is present?",
		Abbrev: abbrev + "_is_present",
		Type:   FtBoolean,
	}
	return append([]FieldInfo{present}, s.elem.describe(name, abbrev, opts)...)
}

func (s *structShape) describe(name, abbrev string, opts fieldOpts) []FieldInfo {
	info := []FieldInfo{{Name: name, Abbrev: abbrev, Type: FtNone}}
	for _, f := range s.fields {
		info = append(info, f.shape.describe(f.name, abbrev+"."+f.name, f.opts)...)
	}
	return info
}
