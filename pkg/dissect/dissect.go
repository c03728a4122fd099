package dissect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/binderdump/pkg/binder"
	"github.com/ssargent/binderdump/pkg/codec"
)

var (
	ErrNoLayout     = errors.New("dissect: missing offset tree")
	ErrUnknownField = errors.New("dissect: field not registered")
	ErrOutOfBounds  = errors.New("dissect: field outside packet")
	// ErrMalformedData is returned together with the partial tree when the
	// write-read buffer does not split into whole BC_/BR_ entries.
	ErrMalformedData = errors.New("dissect: malformed write-read buffer")
)

// Node is one item of a dissection tree. Offsets are relative to the data
// passed to Dissect.
type Node struct {
	Abbrev   string
	Name     string
	Offset   int
	Size     int
	Value    string
	Children []*Node
}

// Find returns the first node registered as abbrev, depth first.
func (n *Node) Find(abbrev string) *Node {
	if n == nil {
		return nil
	}
	if n.Abbrev == abbrev {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(abbrev); found != nil {
			return found
		}
	}
	return nil
}

// Walk calls fn for n and every descendant in tree order.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Dissect dissects data with the default registry.
func Dissect(data []byte, layout codec.Layout) (*Node, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Dissect(data, layout)
}

// Dissect builds the field tree of an encoded binder.EventProtocol from its
// offset tree. The buffer of a write-read record is split further into its
// command or return entries.
func (r *Registry) Dissect(data []byte, layout codec.Layout) (*Node, error) {
	if layout.Err != nil {
		return nil, fmt.Errorf("dissect: %w", layout.Err)
	}
	if layout.Root == nil {
		return nil, ErrNoLayout
	}
	d := &dissector{reg: r, data: data}
	root, err := d.structNode(layout.Root, ProtocolAbbrev, 0)
	if err != nil {
		return nil, err
	}
	if d.malformed != nil {
		return root, d.malformed
	}
	return root, nil
}

type dissector struct {
	reg       *Registry
	data      []byte
	malformed error
}

func (d *dissector) lookup(abbrev string) (codec.FieldInfo, error) {
	info, ok := d.reg.Lookup(abbrev)
	if !ok {
		return codec.FieldInfo{}, fmt.Errorf("%w: %s", ErrUnknownField, abbrev)
	}
	return info, nil
}

func (d *dissector) slice(off, size int) ([]byte, error) {
	if off < 0 || size < 0 || off+size > len(d.data) {
		return nil, fmt.Errorf("%w: [%d:%d] of %d bytes", ErrOutOfBounds, off, off+size, len(d.data))
	}
	return d.data[off : off+size], nil
}

// structNode dissects s. base is added to every offset of the tree, which
// is non zero for payloads decoded out of the write-read buffer.
func (d *dissector) structNode(s *codec.StructOffset, abbrev string, base int) (*Node, error) {
	info, err := d.lookup(abbrev)
	if err != nil {
		return nil, err
	}
	n := &Node{Abbrev: abbrev, Name: info.Name, Offset: base + s.Offset, Size: s.Size}

	for _, f := range s.Fields {
		fieldAbbrev := abbrev + "." + f.Name
		var child *Node
		if f.Inner != nil {
			child, err = d.structNode(f.Inner, fieldAbbrev, base)
		} else {
			child, err = d.leaf(fieldAbbrev, base+f.Offset, f.Size)
		}
		if err != nil {
			return nil, err
		}
		if fieldAbbrev == dataAbbrev {
			if err := d.bwrData(child, s, base); err != nil {
				return nil, err
			}
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func (d *dissector) leaf(abbrev string, off, size int) (*Node, error) {
	info, err := d.lookup(abbrev)
	if err != nil {
		return nil, err
	}
	raw, err := d.slice(off, size)
	if err != nil {
		return nil, err
	}
	return &Node{Abbrev: abbrev, Name: info.Name, Offset: off, Size: size, Value: formatValue(info, raw)}, nil
}

type stream struct {
	prefix string
	code   string
	parse  func([]byte) ([]binder.Op, error)
	decode func(code uint32) (name, payload string, v any, ok bool)
}

var (
	commandStream = stream{
		prefix: CommandsAbbrev,
		code:   "bc",
		parse:  binder.ParseCommands,
		decode: func(code uint32) (string, string, any, bool) {
			c := binder.Command(code)
			payload, v, ok := c.Payload()
			return c.String(), payload, v, ok
		},
	}
	returnStream = stream{
		prefix: ReturnsAbbrev,
		code:   "br",
		parse:  binder.ParseReturns,
		decode: func(code uint32) (string, string, any, bool) {
			r := binder.Return(code)
			payload, v, ok := r.Payload()
			return r.String(), payload, v, ok
		},
	}
)

// bwrData splits the data node of the write-read struct bwr into one
// child per BC_ or BR_ entry.
func (d *dissector) bwrData(data *Node, bwr *codec.StructOffset, base int) error {
	if data.Size == 0 {
		return nil
	}
	typField, ok := bwr.Field(bwrTypeField)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, bwr.Name, bwrTypeField)
	}
	typ, err := d.slice(base+typField.Offset, 1)
	if err != nil {
		return err
	}
	st := returnStream
	if binder.WriteReadType(typ[0]).IsWrite() {
		st = commandStream
	}

	raw, _ := d.slice(data.Offset, data.Size)
	ops, parseErr := st.parse(raw)

	names := make([]string, 0, len(ops))
	for _, op := range ops {
		name, payload, v, hasPayload := st.decode(op.Code)
		names = append(names, name)

		opNode := &Node{Abbrev: st.prefix, Name: name, Offset: data.Offset + op.Offset, Size: op.Size}
		code, err := d.leaf(st.prefix+"."+st.code, opNode.Offset, 4)
		if err != nil {
			return err
		}
		opNode.Children = append(opNode.Children, code)

		if hasPayload {
			layout, err := codec.UnmarshalWithOffsets(raw[op.PayloadOffset():op.Offset+op.Size], v)
			if err == nil {
				err = layout.Err
			}
			if err != nil {
				return fmt.Errorf("failed to decode %s payload: %w", name, err)
			}
			sub, err := d.structNode(layout.Root, st.prefix+"."+payload, data.Offset+op.PayloadOffset())
			if err != nil {
				return err
			}
			opNode.Children = append(opNode.Children, sub)
		}
		data.Children = append(data.Children, opNode)
	}

	data.Value = strings.Join(names, ", ")
	if parseErr != nil {
		d.malformed = fmt.Errorf("%w: %w", ErrMalformedData, parseErr)
	}
	return nil
}

const maxBytesShown = 32

func formatValue(info codec.FieldInfo, raw []byte) string {
	switch info.Type {
	case codec.FtBoolean:
		if len(raw) == 0 {
			return ""
		}
		return strconv.FormatBool(raw[0] != 0)
	case codec.FtU8, codec.FtU16, codec.FtU32, codec.FtU64:
		v := le(raw)
		return formatNumber(info, v, strconv.FormatUint(v, 10))
	case codec.FtI8, codec.FtI16, codec.FtI32, codec.FtI64:
		v := le(raw)
		return formatNumber(info, v, strconv.FormatInt(signExtend(v, len(raw)), 10))
	case codec.FtString:
		return strconv.Quote(cString(raw))
	case codec.FtBytes:
		if len(raw) > maxBytesShown {
			return fmt.Sprintf("% x ...", raw[:maxBytesShown])
		}
		return fmt.Sprintf("% x", raw)
	}
	return ""
}

func formatNumber(info codec.FieldInfo, v uint64, dec string) string {
	for _, s := range info.Strings {
		if s.Value == v {
			return fmt.Sprintf("%s (%s)", s.String, dec)
		}
	}
	switch info.Display {
	case codec.DisplayHex:
		return fmt.Sprintf("%#x", v)
	case codec.DisplayHexDec:
		return fmt.Sprintf("%#x (%s)", v, dec)
	case codec.DisplayDecHex:
		return fmt.Sprintf("%s (%#x)", dec, v)
	}
	return dec
}

func le(raw []byte) uint64 {
	var v uint64
	for i := min(len(raw), 8) - 1; i >= 0; i-- {
		v = v<<8 | uint64(raw[i])
	}
	return v
}

func signExtend(v uint64, size int) int64 {
	if size <= 0 || size >= 8 {
		return int64(v)
	}
	shift := 64 - 8*size
	return int64(v<<shift) >> shift
}

func cString(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}
