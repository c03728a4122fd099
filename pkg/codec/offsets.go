package codec

// FieldOffset locates one field, or one synthesized wire marker, inside the
// decoded buffer.
type FieldOffset struct {
	Name   string
	Offset int
	Size   int
	// Inner is set when the field holds a struct, possibly behind an option
	// or inside a collection.
	Inner *StructOffset
}

// End returns the offset just past the field.
func (f FieldOffset) End() int {
	return f.Offset + f.Size
}

// StructOffset locates a decoded struct and its fields, in wire order.
type StructOffset struct {
	Name   string
	Offset int
	Size   int
	Fields []FieldOffset
}

// Field returns the first field named name.
func (s *StructOffset) Field(name string) (FieldOffset, bool) {
	if s == nil {
		return FieldOffset{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldOffset{}, false
}

// End returns the offset just past the struct.
func (s *StructOffset) End() int {
	return s.Offset + s.Size
}

// offsetTracker rebuilds the StructOffset tree while a value is decoded.
// structs holds the open structs from outermost to innermost and names
// holds the field names each of them still expects.
type offsetTracker struct {
	structs []*StructOffset
	names   [][]string
	result  *StructOffset
}

func (t *offsetTracker) beginStruct(name string, fields []string, off int) error {
	if t.result != nil {
		return offsetErr(TooManyStructs)
	}
	t.structs = append(t.structs, &StructOffset{Name: name, Offset: off})
	t.names = append(t.names, fields)
	return nil
}

func (t *offsetTracker) current() (*StructOffset, error) {
	if len(t.structs) == 0 {
		return nil, offsetErr(EmptyStructStack)
	}
	return t.structs[len(t.structs)-1], nil
}

func (t *offsetTracker) addField(off int) error {
	cur, err := t.current()
	if err != nil {
		return err
	}
	if len(t.names) == 0 {
		return offsetErr(EmptyFieldsStack)
	}
	top := len(t.names) - 1
	remaining := t.names[top]
	if len(remaining) == 0 {
		return offsetErr(TooManyFields)
	}
	name := remaining[0]
	t.names[top] = remaining[1:]

	if n := len(cur.Fields); n > 0 {
		prev := &cur.Fields[n-1]
		prev.Size = off - prev.Offset
	}
	cur.Fields = append(cur.Fields, FieldOffset{Name: name, Offset: off})
	return nil
}

// addPseudo replaces the last field with a marker named after it. When keep
// is set the field is pushed back, starting right after the marker.
func (t *offsetTracker) addPseudo(off, size int, suffix string, keep bool) error {
	cur, err := t.current()
	if err != nil {
		return err
	}
	n := len(cur.Fields)
	if n == 0 {
		return offsetErr(TooManyFields)
	}
	field := cur.Fields[n-1]
	cur.Fields[n-1] = FieldOffset{Name: field.Name + suffix, Offset: off, Size: size}
	if keep {
		field.Offset = off + size
		cur.Fields = append(cur.Fields, field)
	}
	return nil
}

func (t *offsetTracker) addOption(off, size int, present bool) error {
	return t.addPseudo(off, size, "_is_present", present)
}

func (t *offsetTracker) addLen(off, size int) error {
	return t.addPseudo(off, size, "_len", true)
}

// beginElement is called before every element of a collection or fixed
// array, so that each element's struct replaces the previous one.
func (t *offsetTracker) beginElement() {
	if len(t.structs) == 0 {
		return
	}
	cur := t.structs[len(t.structs)-1]
	if n := len(cur.Fields); n > 0 {
		cur.Fields[n-1].Inner = nil
	}
}

func (t *offsetTracker) finishStruct(off int) error {
	if len(t.structs) == 0 || len(t.names) == 0 {
		return offsetErr(EmptyStructStack)
	}
	done := t.structs[len(t.structs)-1]
	t.structs = t.structs[:len(t.structs)-1]
	remaining := t.names[len(t.names)-1]
	t.names = t.names[:len(t.names)-1]
	if len(remaining) != 0 {
		return offsetErr(TooLittleFields)
	}

	if n := len(done.Fields); n > 0 {
		last := &done.Fields[n-1]
		last.Size = off - last.Offset
	}
	done.Size = off - done.Offset

	if len(t.structs) == 0 {
		t.result = done
		return nil
	}
	parent := t.structs[len(t.structs)-1]
	n := len(parent.Fields)
	if n == 0 {
		return offsetErr(NoFields)
	}
	if parent.Fields[n-1].Inner != nil {
		return offsetErr(DoubleInnerStruct)
	}
	parent.Fields[n-1].Inner = done
	return nil
}

func (t *offsetTracker) take() (*StructOffset, error) {
	if len(t.names) != 0 {
		return nil, offsetErr(UnexpectedFields)
	}
	if len(t.structs) != 0 {
		return nil, offsetErr(UnexpectedStruct)
	}
	if t.result == nil {
		return nil, offsetErr(NoResult)
	}
	return t.result, nil
}
