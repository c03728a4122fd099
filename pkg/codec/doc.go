// Package codec provides the binderdump wire format and a reflection driven
// encoder/decoder that reconstructs the byte layout of every decoded record.
//
// The codec serializes plain Go values into a packed, little-endian binary
// format. Records carry no schema on the wire: the Go type being decoded is
// the schema. While decoding, the codec can optionally rebuild an offset tree
// (StructOffset / FieldOffset) describing where every field, collection length
// and option presence flag lives in the input buffer. The packet dissector
// relies on that tree to highlight bytes.
//
// # Wire Format
//
// All multi-byte integers are little-endian and nothing is aligned:
//
//	bool          1 byte, 0x00 = false, anything else = true
//	intN / uintN  N/8 bytes
//	[]T           u16 element count, then the elements back to back
//	[N]T          N elements back to back, no prefix
//	*T            u8 presence flag (0x00 / 0x01), then T if present
//	string        encoded like []byte, UTF-8 validated on decode
//	struct        exported fields in declaration order, no tags or padding
//
// A nil slice and an empty one share the same encoding. Decoding always
// produces nil for a zero count, so round trips compare equal only after
// treating the two as the same value.
//
// Collections longer than 65535 elements cannot be encoded and fail with
// ErrLengthOverflow. Integer types implementing Enum are validated on both
// encode and decode and fail with ErrInvalidVariant when Valid reports false.
//
// Platform sized integers (int, uint, uintptr), floats, complex numbers, maps,
// interfaces, channels, funcs and self-referential types are rejected with
// ErrUnsupportedType. Register can be used to validate a type up front.
//
// # Field Names
//
// Field names are taken from the `wire` struct tag, falling back to the Go
// field name converted to snake_case (IoctlID becomes ioctl_id). A tag of "-"
// excludes the field. Unexported fields are always skipped. Extra tag options
// only affect Describe:
//
//	Comm [16]byte `wire:"comm,text"` // show as an ASCII string
//	Cmd  uint32   `wire:",hex"`      // show in hexadecimal
//
// # Offsets
//
// UnmarshalWithOffsets returns a Layout next to the decoded value. The tree
// contains synthesized pseudo fields for wire markers that have no Go field:
//
//	<field>_len         the u16 count in front of a collection or string
//	<field>_is_present  the presence flag in front of an option
//
// Markers are only produced at field level. Counts and presence flags inside
// the elements of a collection or fixed array are covered by the field's
// own entry, unless the element is a struct with fields of its own.
//
// An absent option only contributes its _is_present entry. When a
// collection or fixed array holds structs, only the last element's
// StructOffset is kept on the field.
//
// Offset reconstruction is independent from value decoding: the decode can
// succeed while Layout.Err reports that no tree could be produced, for
// example when the decoded value is not a struct.
//
// # Usage
//
//	type Ping struct {
//	    Seq   uint32
//	    Extra *uint16
//	    Note  string
//	}
//
//	data, err := codec.Marshal(Ping{Seq: 1, Note: "hi"})
//	if err != nil {
//	    return err
//	}
//
//	var p Ping
//	layout, err := codec.UnmarshalWithOffsets(data, &p)
//	if err != nil {
//	    return err
//	}
//	if layout.Err == nil {
//	    seq, _ := layout.Root.Field("seq") // offset 0, size 4
//	}
//
// # Thread Safety
//
// Compiled type information is cached process wide and is safe for
// concurrent use. Each encode or decode call owns its cursor and offset
// tracker, so calls on independent buffers need no synchronization.
package codec
