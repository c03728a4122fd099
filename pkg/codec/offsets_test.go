package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetTracker_Protocol(t *testing.T) {
	testCases := []struct {
		name string
		run  func(tr *offsetTracker) error
		kind OffsetErrorKind
	}{
		{
			name: "field without struct",
			run:  func(tr *offsetTracker) error { return tr.addField(0) },
			kind: EmptyStructStack,
		},
		{
			name: "finish without struct",
			run:  func(tr *offsetTracker) error { return tr.finishStruct(0) },
			kind: EmptyStructStack,
		},
		{
			name: "too many fields",
			run: func(tr *offsetTracker) error {
				_ = tr.beginStruct("a", []string{"x"}, 0)
				_ = tr.addField(0)
				return tr.addField(1)
			},
			kind: TooManyFields,
		},
		{
			name: "marker without a field",
			run: func(tr *offsetTracker) error {
				_ = tr.beginStruct("a", []string{"x"}, 0)
				return tr.addLen(0, 2)
			},
			kind: TooManyFields,
		},
		{
			name: "finish with fields left",
			run: func(tr *offsetTracker) error {
				_ = tr.beginStruct("a", []string{"x", "y"}, 0)
				_ = tr.addField(0)
				return tr.finishStruct(1)
			},
			kind: TooLittleFields,
		},
		{
			name: "second root",
			run: func(tr *offsetTracker) error {
				_ = tr.beginStruct("a", nil, 0)
				_ = tr.finishStruct(0)
				return tr.beginStruct("b", nil, 0)
			},
			kind: TooManyStructs,
		},
		{
			name: "nested struct before any parent field",
			run: func(tr *offsetTracker) error {
				_ = tr.beginStruct("a", []string{"x"}, 0)
				_ = tr.beginStruct("b", nil, 0)
				return tr.finishStruct(0)
			},
			kind: NoFields,
		},
		{
			name: "two structs in one field",
			run: func(tr *offsetTracker) error {
				_ = tr.beginStruct("a", []string{"x"}, 0)
				_ = tr.addField(0)
				_ = tr.beginStruct("b", nil, 0)
				_ = tr.finishStruct(0)
				_ = tr.beginStruct("c", nil, 0)
				return tr.finishStruct(0)
			},
			kind: DoubleInnerStruct,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run(&offsetTracker{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrOffsetProtocol)
			assert.ErrorIs(t, err, &OffsetError{Kind: tc.kind})

			var oe *OffsetError
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, tc.kind, oe.Kind)
		})
	}
}

func TestOffsetTracker_Take(t *testing.T) {
	t.Run("nothing decoded", func(t *testing.T) {
		_, err := (&offsetTracker{}).take()
		assert.ErrorIs(t, err, &OffsetError{Kind: NoResult})
	})

	t.Run("struct still open", func(t *testing.T) {
		tr := &offsetTracker{}
		require.NoError(t, tr.beginStruct("a", nil, 0))
		_, err := tr.take()
		assert.ErrorIs(t, err, &OffsetError{Kind: UnexpectedFields})
	})

	t.Run("finished", func(t *testing.T) {
		tr := &offsetTracker{}
		require.NoError(t, tr.beginStruct("a", []string{"x", "y"}, 4))
		require.NoError(t, tr.addField(4))
		require.NoError(t, tr.addField(6))
		require.NoError(t, tr.finishStruct(7))

		root, err := tr.take()
		require.NoError(t, err)
		assert.Equal(t, &StructOffset{
			Name: "a", Offset: 4, Size: 3,
			Fields: []FieldOffset{
				{Name: "x", Offset: 4, Size: 2},
				{Name: "y", Offset: 6, Size: 1},
			},
		}, root)
	})
}

func TestOffsetTracker_Markers(t *testing.T) {
	tr := &offsetTracker{}
	require.NoError(t, tr.beginStruct("a", []string{"opt", "seq", "gone"}, 0))

	require.NoError(t, tr.addField(0))
	require.NoError(t, tr.addOption(0, 1, true))
	require.NoError(t, tr.addField(3))
	require.NoError(t, tr.addLen(3, 2))
	require.NoError(t, tr.addField(8))
	require.NoError(t, tr.addOption(8, 1, false))
	require.NoError(t, tr.finishStruct(9))

	root, err := tr.take()
	require.NoError(t, err)
	assert.Equal(t, []FieldOffset{
		{Name: "opt_is_present", Offset: 0, Size: 1},
		{Name: "opt", Offset: 1, Size: 2},
		{Name: "seq_len", Offset: 3, Size: 2},
		{Name: "seq", Offset: 5, Size: 3},
		{Name: "gone_is_present", Offset: 8, Size: 1},
	}, root.Fields)
}

func TestOffsetTracker_BeginElementReplacesInner(t *testing.T) {
	tr := &offsetTracker{}
	require.NoError(t, tr.beginStruct("outer", []string{"items"}, 0))
	require.NoError(t, tr.addField(0))

	for i := 0; i < 3; i++ {
		tr.beginElement()
		require.NoError(t, tr.beginStruct("item", []string{"v"}, i))
		require.NoError(t, tr.addField(i))
		require.NoError(t, tr.finishStruct(i+1))
	}
	require.NoError(t, tr.finishStruct(3))

	root, err := tr.take()
	require.NoError(t, err)
	items, ok := root.Field("items")
	require.True(t, ok)
	assert.Equal(t, 3, items.Size)
	require.NotNil(t, items.Inner)
	assert.Equal(t, 2, items.Inner.Offset)
}

func TestStructOffset_FieldOnNil(t *testing.T) {
	var s *StructOffset
	_, ok := s.Field("x")
	assert.False(t, ok)
}

func TestOffsetErrorKind_String(t *testing.T) {
	assert.Equal(t, "double inner struct", DoubleInnerStruct.String())
	assert.Equal(t, "unknown", OffsetErrorKind(99).String())
	assert.Equal(t, "codec: offset tracking: no result", (&OffsetError{Kind: NoResult}).Error())
}
