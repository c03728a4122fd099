package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnum int16

const (
	testZero testEnum = 0
	testOne  testEnum = 1
)

func (e testEnum) Valid() bool { return e == testZero || e == testOne }

func (testEnum) Strings() []ValueString {
	return []ValueString{{Value: 0, String: "ZERO"}, {Value: 1, String: "ONE"}}
}

type wideEnum uint32

const (
	wideZero wideEnum = iota
	wideOne
)

func (e wideEnum) Valid() bool { return e <= wideOne }

type seqTest struct {
	Int uint32
	Seq []uint8
}

type onlySeq struct {
	Seq []uint8
}

type onlyOption struct {
	Option *int32
}

type testInner struct {
	Foo uint32
}

type optionThenByte struct {
	Inner *testInner
	Bar   uint8
}

type twoOptions struct {
	Option  *int32
	Option2 *[]uint8
}

type InnerInnerTest struct {
	Num uint8
}

type InnerTest struct {
	Num   int16
	Inner InnerInnerTest
}

type nestedTest struct {
	Array  [3]uint8
	Bytes  []uint8
	Inner  *InnerTest
	Inner2 InnerTest
}

type roundTripInner struct {
	En wideEnum
}

type roundTrip struct {
	Int    uint32
	Seq    []uint8
	Str    string
	En     wideEnum
	Inner  roundTripInner
	Option *uint16
	Array  [2]uint8
}

type point struct {
	X uint8
}

type pointArray struct {
	Items [2]point
}

type pointSlice struct {
	Items []point
}

type empty struct{}

type withEmpty struct {
	E empty
	N uint8
}

func ptr[T any](v T) *T { return &v }

// checkPacked verifies that fields are contiguous and cover the struct.
func checkPacked(t *testing.T, s *StructOffset) {
	t.Helper()
	require.NotNil(t, s)
	pos := s.Offset
	for _, f := range s.Fields {
		assert.Equal(t, pos, f.Offset, "field %s of %s", f.Name, s.Name)
		assert.GreaterOrEqual(t, f.Size, 0)
		pos = f.End()
		if f.Inner != nil {
			checkPacked(t, f.Inner)
		}
	}
	assert.Equal(t, s.End(), pos, "size of %s", s.Name)
}

func TestUnmarshalWithOffsets_SeqVectors(t *testing.T) {
	t.Run("int and seq", func(t *testing.T) {
		var v seqTest
		layout, err := UnmarshalWithOffsets([]byte{3, 0, 0, 0, 3, 0, 1, 2, 3}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		assert.Equal(t, seqTest{Int: 3, Seq: []uint8{1, 2, 3}}, v)
		assert.Equal(t, &StructOffset{
			Name: "seqTest", Offset: 0, Size: 9,
			Fields: []FieldOffset{
				{Name: "int", Offset: 0, Size: 4},
				{Name: "seq_len", Offset: 4, Size: 2},
				{Name: "seq", Offset: 6, Size: 3},
			},
		}, layout.Root)
	})

	t.Run("empty seq", func(t *testing.T) {
		var v onlySeq
		layout, err := UnmarshalWithOffsets([]byte{0, 0}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		assert.Empty(t, v.Seq)
		assert.Equal(t, []FieldOffset{
			{Name: "seq_len", Offset: 0, Size: 2},
			{Name: "seq", Offset: 2, Size: 0},
		}, layout.Root.Fields)
		assert.Equal(t, 2, layout.Root.Size)
	})
}

func TestUnmarshalWithOffsets_Options(t *testing.T) {
	t.Run("absent option keeps only the flag", func(t *testing.T) {
		var v onlyOption
		layout, err := UnmarshalWithOffsets([]byte{0}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		assert.Nil(t, v.Option)
		assert.Equal(t, []FieldOffset{{Name: "option_is_present", Offset: 0, Size: 1}}, layout.Root.Fields)
		assert.Equal(t, 1, layout.Root.Size)
	})

	t.Run("absent struct option followed by a field", func(t *testing.T) {
		var v optionThenByte
		layout, err := UnmarshalWithOffsets([]byte{0, 3}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		assert.Nil(t, v.Inner)
		assert.Equal(t, uint8(3), v.Bar)
		assert.Equal(t, []FieldOffset{
			{Name: "inner_is_present", Offset: 0, Size: 1},
			{Name: "bar", Offset: 1, Size: 1},
		}, layout.Root.Fields)
		assert.Equal(t, 2, layout.Root.Size)
	})

	t.Run("present and absent", func(t *testing.T) {
		var v twoOptions
		layout, err := UnmarshalWithOffsets([]byte{1, 5, 0, 0, 0, 0}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		require.NotNil(t, v.Option)
		assert.Equal(t, int32(5), *v.Option)
		assert.Nil(t, v.Option2)
		assert.Equal(t, []FieldOffset{
			{Name: "option_is_present", Offset: 0, Size: 1},
			{Name: "option", Offset: 1, Size: 4},
			{Name: "option2_is_present", Offset: 5, Size: 1},
		}, layout.Root.Fields)
	})
}

func TestUnmarshalWithOffsets_Nested(t *testing.T) {
	data := []byte{'a', 'b', 'c', 1, 0, 1, 1, 3, 0, 1, 2, 0, 6}

	var v nestedTest
	layout, err := UnmarshalWithOffsets(data, &v)
	require.NoError(t, err)
	require.NoError(t, layout.Err)

	assert.Equal(t, nestedTest{
		Array:  [3]uint8{'a', 'b', 'c'},
		Bytes:  []uint8{1},
		Inner:  &InnerTest{Num: 3, Inner: InnerInnerTest{Num: 1}},
		Inner2: InnerTest{Num: 2, Inner: InnerInnerTest{Num: 6}},
	}, v)

	innerAt := func(off int) *StructOffset {
		return &StructOffset{
			Name: "InnerTest", Offset: off, Size: 3,
			Fields: []FieldOffset{
				{Name: "num", Offset: off, Size: 2},
				{Name: "inner", Offset: off + 2, Size: 1, Inner: &StructOffset{
					Name: "InnerInnerTest", Offset: off + 2, Size: 1,
					Fields: []FieldOffset{{Name: "num", Offset: off + 2, Size: 1}},
				}},
			},
		}
	}

	assert.Equal(t, &StructOffset{
		Name: "nestedTest", Offset: 0, Size: 13,
		Fields: []FieldOffset{
			{Name: "array", Offset: 0, Size: 3},
			{Name: "bytes_len", Offset: 3, Size: 2},
			{Name: "bytes", Offset: 5, Size: 1},
			{Name: "inner_is_present", Offset: 6, Size: 1},
			{Name: "inner", Offset: 7, Size: 3, Inner: innerAt(7)},
			{Name: "inner2", Offset: 10, Size: 3, Inner: innerAt(10)},
		},
	}, layout.Root)
	checkPacked(t, layout.Root)
}

func TestUnmarshalWithOffsets_ArrayThenOption(t *testing.T) {
	type InnerTest struct {
		Num int16
	}
	type Test struct {
		Array [3]uint8
		Inner *InnerTest
	}

	var v Test
	layout, err := UnmarshalWithOffsets([]byte{0x61, 0x62, 0x63, 0x01, 0x03, 0x00}, &v)
	require.NoError(t, err)
	require.NoError(t, layout.Err)

	assert.Equal(t, [3]uint8{'a', 'b', 'c'}, v.Array)
	require.NotNil(t, v.Inner)
	assert.Equal(t, int16(3), v.Inner.Num)

	require.Len(t, layout.Root.Fields, 3)
	assert.Equal(t, FieldOffset{Name: "array", Offset: 0, Size: 3}, layout.Root.Fields[0])
	assert.Equal(t, FieldOffset{Name: "inner_is_present", Offset: 3, Size: 1}, layout.Root.Fields[1])

	inner := layout.Root.Fields[2]
	assert.Equal(t, "inner", inner.Name)
	assert.Equal(t, 4, inner.Offset)
	assert.Equal(t, 2, inner.Size)
	require.NotNil(t, inner.Inner)
	assert.Equal(t, "InnerTest", inner.Inner.Name)
	assert.Equal(t, []FieldOffset{{Name: "num", Offset: 4, Size: 2}}, inner.Inner.Fields)
}

func TestUnmarshalWithOffsets_RepeatedStructsKeepLast(t *testing.T) {
	t.Run("fixed array", func(t *testing.T) {
		var v pointArray
		layout, err := UnmarshalWithOffsets([]byte{1, 2}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		assert.Equal(t, [2]point{{X: 1}, {X: 2}}, v.Items)
		items := layout.Root.Fields[0]
		assert.Equal(t, 0, items.Offset)
		assert.Equal(t, 2, items.Size)
		require.NotNil(t, items.Inner)
		assert.Equal(t, 1, items.Inner.Offset)
		assert.Equal(t, 1, items.Inner.Size)
	})

	t.Run("collection", func(t *testing.T) {
		var v pointSlice
		layout, err := UnmarshalWithOffsets([]byte{2, 0, 7, 8}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		assert.Equal(t, []point{{X: 7}, {X: 8}}, v.Items)
		require.Len(t, layout.Root.Fields, 2)
		assert.Equal(t, "items_len", layout.Root.Fields[0].Name)
		items := layout.Root.Fields[1]
		assert.Equal(t, 2, items.Offset)
		assert.Equal(t, 2, items.Size)
		require.NotNil(t, items.Inner)
		assert.Equal(t, 3, items.Inner.Offset)
	})
}

func TestUnmarshalWithOffsets_CountsInsideElements(t *testing.T) {
	type label struct {
		Name string
	}
	type textsThenTail struct {
		Names []string
		Tail  uint8
	}
	type rows struct {
		Rows [2][]uint8
	}
	type optionsThenTail struct {
		Opts []*uint8
		Tail uint8
	}
	type labels struct {
		Items []label
	}

	tests := []struct {
		name   string
		data   []byte
		v      any
		fields []FieldOffset
	}{
		{
			name: "collection of text",
			data: []byte{2, 0, 1, 0, 'a', 2, 0, 'b', 'c', 9},
			v:    &textsThenTail{},
			fields: []FieldOffset{
				{Name: "names_len", Offset: 0, Size: 2},
				{Name: "names", Offset: 2, Size: 7},
				{Name: "tail", Offset: 9, Size: 1},
			},
		},
		{
			name: "fixed array of collections",
			data: []byte{1, 0, 5, 0, 0},
			v:    &rows{},
			fields: []FieldOffset{
				{Name: "rows", Offset: 0, Size: 5},
			},
		},
		{
			name: "collection of options",
			data: []byte{2, 0, 1, 4, 0, 9},
			v:    &optionsThenTail{},
			fields: []FieldOffset{
				{Name: "opts_len", Offset: 0, Size: 2},
				{Name: "opts", Offset: 2, Size: 3},
				{Name: "tail", Offset: 5, Size: 1},
			},
		},
		{
			name: "collection of structs with text",
			data: []byte{1, 0, 1, 0, 'x'},
			v:    &labels{},
			fields: []FieldOffset{
				{Name: "items_len", Offset: 0, Size: 2},
				{Name: "items", Offset: 2, Size: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := UnmarshalWithOffsets(tt.data, tt.v)
			require.NoError(t, err)
			require.NoError(t, layout.Err)
			checkPacked(t, layout.Root)

			got := make([]FieldOffset, len(layout.Root.Fields))
			for i, f := range layout.Root.Fields {
				got[i] = FieldOffset{Name: f.Name, Offset: f.Offset, Size: f.Size}
			}
			assert.Equal(t, tt.fields, got)
		})
	}

	t.Run("struct elements keep their own markers", func(t *testing.T) {
		var v labels
		layout, err := UnmarshalWithOffsets([]byte{1, 0, 1, 0, 'x'}, &v)
		require.NoError(t, err)
		require.NoError(t, layout.Err)

		assert.Equal(t, []label{{Name: "x"}}, v.Items)
		items, ok := layout.Root.Field("items")
		require.True(t, ok)
		require.NotNil(t, items.Inner)
		assert.Equal(t, []FieldOffset{
			{Name: "name_len", Offset: 2, Size: 2},
			{Name: "name", Offset: 4, Size: 1},
		}, items.Inner.Fields)
	})
}

func TestUnmarshalWithOffsets_EmptyStruct(t *testing.T) {
	var v withEmpty
	layout, err := UnmarshalWithOffsets([]byte{7}, &v)
	require.NoError(t, err)
	require.NoError(t, layout.Err)

	assert.Equal(t, uint8(7), v.N)
	e := layout.Root.Fields[0]
	assert.Equal(t, FieldOffset{Name: "e", Offset: 0, Size: 0, Inner: &StructOffset{Name: "empty"}}, e)
	assert.Equal(t, FieldOffset{Name: "n", Offset: 0, Size: 1}, layout.Root.Fields[1])
}

func TestUnmarshalWithOffsets_NonStructRoot(t *testing.T) {
	t.Run("enum decodes without a tree", func(t *testing.T) {
		var v testEnum
		layout, err := UnmarshalWithOffsets([]byte{1, 0}, &v)
		require.NoError(t, err)
		assert.Equal(t, testOne, v)
		assert.ErrorIs(t, layout.Err, &OffsetError{Kind: NoResult})
		assert.Nil(t, layout.Root)
	})

	t.Run("byte array decodes without a tree", func(t *testing.T) {
		var v [3]uint8
		layout, err := UnmarshalWithOffsets([]byte("abc"), &v)
		require.NoError(t, err)
		assert.Equal(t, [3]uint8{'a', 'b', 'c'}, v)
		assert.ErrorIs(t, layout.Err, ErrOffsetProtocol)
	})

	t.Run("collection root breaks tracking", func(t *testing.T) {
		var v []point
		_, err := UnmarshalWithOffsets([]byte{1, 0, 9}, &v)
		assert.ErrorIs(t, err, &OffsetError{Kind: EmptyStructStack})

		require.NoError(t, Unmarshal([]byte{1, 0, 9}, &v))
		assert.Equal(t, []point{{X: 9}}, v)
	})

	t.Run("array of structs at the root", func(t *testing.T) {
		var v [2]point
		_, err := UnmarshalWithOffsets([]byte{1, 2}, &v)
		assert.ErrorIs(t, err, &OffsetError{Kind: TooManyStructs})
	})
}

func TestMarshal_RoundTrip(t *testing.T) {
	v := roundTrip{
		Int:    0xff,
		Seq:    []uint8{3, 2, 1},
		Str:    "Hello",
		En:     wideZero,
		Inner:  roundTripInner{En: wideOne},
		Option: ptr(uint16(9000)),
		Array:  [2]uint8{1, 2},
	}

	data, err := Marshal(v)
	require.NoError(t, err)

	expected := []byte{
		0xff, 0, 0, 0,
		3, 0, 3, 2, 1,
		5, 0, 'H', 'e', 'l', 'l', 'o',
		0, 0, 0, 0,
		1, 0, 0, 0,
		1, 0x28, 0x23,
		1, 2,
	}
	assert.Equal(t, expected, data)

	var decoded roundTrip
	layout, err := UnmarshalWithOffsets(data, &decoded)
	require.NoError(t, err)
	require.NoError(t, layout.Err)
	assert.Equal(t, v, decoded)

	assert.Equal(t, len(data), layout.Root.Size)
	checkPacked(t, layout.Root)

	names := make([]string, 0, len(layout.Root.Fields))
	for _, f := range layout.Root.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"int", "seq_len", "seq", "str_len", "str", "en", "inner",
		"option_is_present", "option", "array",
	}, names)

	inner, ok := layout.Root.Field("inner")
	require.True(t, ok)
	assert.Equal(t, 20, inner.Offset)
	require.NotNil(t, inner.Inner)
	assert.Equal(t, []FieldOffset{{Name: "en", Offset: 20, Size: 4}}, inner.Inner.Fields)
}

func TestUnmarshal_EmptyCollectionsDecodeNil(t *testing.T) {
	type collections struct {
		Bytes  []uint8
		Words  []uint16
		Points []point
	}

	tests := []struct {
		name string
		in   collections
	}{
		{name: "nil", in: collections{}},
		{name: "empty", in: collections{Bytes: []uint8{}, Words: []uint16{}, Points: []point{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, data)

			var out collections
			require.NoError(t, Unmarshal(data, &out))
			assert.Nil(t, out.Bytes)
			assert.Nil(t, out.Words)
			assert.Nil(t, out.Points)
		})
	}
}

func TestMarshal_PointerAndValueAgree(t *testing.T) {
	v := seqTest{Int: 7, Seq: []uint8{1}}
	a, err := Marshal(v)
	require.NoError(t, err)
	b, err := Marshal(&v)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMarshal_LengthOverflow(t *testing.T) {
	t.Run("bytes", func(t *testing.T) {
		var buf bytes.Buffer
		err := Write(&buf, onlySeq{Seq: make([]uint8, 65536)})
		assert.ErrorIs(t, err, ErrLengthOverflow)
		assert.Zero(t, buf.Len())
	})

	t.Run("struct elements", func(t *testing.T) {
		_, err := Marshal(pointSlice{Items: make([]point, 70000)})
		assert.ErrorIs(t, err, ErrLengthOverflow)
	})

	t.Run("exactly 65535 fits", func(t *testing.T) {
		data, err := Marshal(onlySeq{Seq: make([]uint8, 65535)})
		require.NoError(t, err)
		assert.Len(t, data, 2+65535)
		assert.Equal(t, []byte{0xff, 0xff}, data[:2])
	})
}

func TestMarshal_InvalidEnum(t *testing.T) {
	_, err := Marshal(roundTripInner{En: wideEnum(9)})
	assert.ErrorIs(t, err, ErrInvalidVariant)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWrite_PropagatesSinkError(t *testing.T) {
	err := Write(failingWriter{}, seqTest{Int: 1})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestUnmarshal_Errors(t *testing.T) {
	t.Run("truncated scalar", func(t *testing.T) {
		var v seqTest
		err := Unmarshal([]byte{1, 2}, &v)
		assert.ErrorIs(t, err, ErrTruncated)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("truncated collection body", func(t *testing.T) {
		var v onlySeq
		err := Unmarshal([]byte{4, 0, 1}, &v)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("empty input", func(t *testing.T) {
		var v onlyOption
		err := Unmarshal(nil, &v)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		var v struct{ Str string }
		err := Unmarshal([]byte{2, 0, 0xff, 0xfe}, &v)
		assert.ErrorIs(t, err, ErrInvalidUTF8)
	})

	t.Run("invalid variant", func(t *testing.T) {
		var v testEnum
		err := Unmarshal([]byte{2, 0}, &v)
		assert.ErrorIs(t, err, ErrInvalidVariant)
	})

	t.Run("target untouched on failure", func(t *testing.T) {
		v := seqTest{Int: 42}
		err := Unmarshal([]byte{1, 0, 0, 0, 5, 0, 1}, &v)
		require.Error(t, err)
		assert.Equal(t, seqTest{Int: 42}, v)
	})

	t.Run("non pointer target", func(t *testing.T) {
		err := Unmarshal([]byte{0}, seqTest{})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("field path in message", func(t *testing.T) {
		var v nestedTest
		err := Unmarshal([]byte{'a', 'b', 'c', 0, 0, 1, 3}, &v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nestedTest.inner")
	})
}

func TestUnmarshal_BoolAcceptsAnyNonZero(t *testing.T) {
	var v struct{ Flag bool }
	require.NoError(t, Unmarshal([]byte{0x02}, &v))
	assert.True(t, v.Flag)

	data, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)
}

func TestUnmarshal_SignedScalars(t *testing.T) {
	var v struct {
		A int8
		B int16
		C int32
		D int64
	}
	data := []byte{0xff, 0xfe, 0xff, 0xfd, 0xff, 0xff, 0xff, 0xfc, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	require.NoError(t, Unmarshal(data, &v))
	assert.Equal(t, int8(-1), v.A)
	assert.Equal(t, int16(-2), v.B)
	assert.Equal(t, int32(-3), v.C)
	assert.Equal(t, int64(-4), v.D)

	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestRead_Stream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, seqTest{Int: 1, Seq: []uint8{9}}))
	require.NoError(t, Write(&buf, seqTest{Int: 2}))

	var first, second seqTest
	require.NoError(t, Read(&buf, &first))
	require.NoError(t, Read(&buf, &second))
	assert.Equal(t, uint32(1), first.Int)
	assert.Equal(t, []uint8{9}, first.Seq)
	assert.Equal(t, uint32(2), second.Int)

	var third seqTest
	assert.True(t, errors.Is(Read(&buf, &third), ErrTruncated))
}

type recursive struct {
	Next *recursive
}

type indirectA struct {
	B []indirectB
}

type indirectB struct {
	A *indirectA
}

func TestRegister(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		ok    bool
	}{
		{name: "nested struct", value: nestedTest{}, ok: true},
		{name: "pointer to struct", value: &roundTrip{}, ok: true},
		{name: "int field", value: struct{ N int }{}, ok: false},
		{name: "uint field", value: struct{ N uint }{}, ok: false},
		{name: "float field", value: struct{ F float64 }{}, ok: false},
		{name: "map field", value: struct{ M map[string]uint8 }{}, ok: false},
		{name: "interface field", value: struct{ I any }{}, ok: false},
		{name: "self reference", value: recursive{}, ok: false},
		{name: "indirect self reference", value: indirectA{}, ok: false},
		{name: "unexported fields ignored", value: struct {
			A uint8
			b int
		}{}, ok: true},
		{name: "skipped field", value: struct {
			A uint8
			F float32 `wire:"-"`
		}{}, ok: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Register(tc.value)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnsupportedType)
			}
		})
	}
}

// checkedFrame has a Valid method like an Enum but is a struct.
type checkedFrame struct {
	Sum  uint32
	Data []uint8
}

func (f checkedFrame) Valid() bool { return f.Sum == uint32(len(f.Data)) }

type validFlag bool

func (validFlag) Valid() bool { return true }

func TestValidMethodOnNonInteger(t *testing.T) {
	in := checkedFrame{Sum: 3, Data: []uint8{1, 2, 3}}
	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 0, 0, 3, 0, 1, 2, 3}, data)

	var out checkedFrame
	layout, err := UnmarshalWithOffsets(data, &out)
	require.NoError(t, err)
	require.NoError(t, layout.Err)
	assert.Equal(t, in, out)
	assert.Equal(t, "checkedFrame", layout.Root.Name)
	assert.Len(t, layout.Root.Fields, 3)

	data, err = Marshal(struct{ Flag validFlag }{true})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
}

func TestWireTags(t *testing.T) {
	type tagged struct {
		Renamed uint8 `wire:"other"`
		Skipped uint8 `wire:"-"`
		Kept    uint8 `wire:",hex"`
	}

	var v tagged
	layout, err := UnmarshalWithOffsets([]byte{1, 2}, &v)
	require.NoError(t, err)
	require.NoError(t, layout.Err)
	assert.Equal(t, tagged{Renamed: 1, Kept: 2}, v)
	assert.Equal(t, "other", layout.Root.Fields[0].Name)
	assert.Equal(t, "kept", layout.Root.Fields[1].Name)
}

func TestSnakeCase(t *testing.T) {
	testCases := map[string]string{
		"Int":             "int",
		"WriteSize":       "write_size",
		"IoctlID":         "ioctl_id",
		"BWR":             "bwr",
		"HTTPServer":      "http_server",
		"Option2":         "option2",
		"TargetCmdline":   "target_cmdline",
		"BinderInterface": "binder_interface",
	}
	for in, want := range testCases {
		assert.Equal(t, want, snakeCase(in), in)
	}
}
