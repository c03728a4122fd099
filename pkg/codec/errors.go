package codec

import (
	"errors"
)

var (
	// ErrTruncated is returned when the input ends before the value does.
	ErrTruncated = errors.New("codec: input truncated")
	// ErrInvalidUTF8 is returned when a string field holds invalid UTF-8.
	ErrInvalidUTF8 = errors.New("codec: invalid utf-8 in text field")
	// ErrInvalidVariant is returned for enum values outside their variant set.
	ErrInvalidVariant = errors.New("codec: invalid enum variant")
	// ErrLengthOverflow is returned when a collection does not fit a u16 count.
	ErrLengthOverflow = errors.New("codec: collection length exceeds 65535")
	// ErrOffsetProtocol is matched by every *OffsetError.
	ErrOffsetProtocol = errors.New("codec: offset tracking protocol violation")
	// ErrUnsupportedType is returned for Go types the wire format cannot carry.
	ErrUnsupportedType = errors.New("codec: unsupported type")
)

// OffsetErrorKind identifies which offset tracker invariant was broken.
type OffsetErrorKind int

const (
	TooManyStructs OffsetErrorKind = iota + 1
	EmptyStructStack
	EmptyFieldsStack
	TooManyFields
	TooLittleFields
	NoFields
	DoubleInnerStruct
	UnexpectedFields
	UnexpectedStruct
	NoResult
)

var offsetErrorNames = map[OffsetErrorKind]string{
	TooManyStructs:    "too many structs",
	EmptyStructStack:  "empty struct stack",
	EmptyFieldsStack:  "empty fields stack",
	TooManyFields:     "too many fields",
	TooLittleFields:   "too little fields",
	NoFields:          "no fields",
	DoubleInnerStruct: "double inner struct",
	UnexpectedFields:  "unexpected fields",
	UnexpectedStruct:  "unexpected struct",
	NoResult:          "no result",
}

func (k OffsetErrorKind) String() string {
	if name, ok := offsetErrorNames[k]; ok {
		return name
	}
	return "unknown"
}

// OffsetError reports that the decoder and the offset tracker went out of
// sync. It always indicates a bug in a type binding, never bad input.
type OffsetError struct {
	Kind OffsetErrorKind
}

func (e *OffsetError) Error() string {
	return "codec: offset tracking: " + e.Kind.String()
}

// Is matches ErrOffsetProtocol and any *OffsetError of the same kind.
func (e *OffsetError) Is(target error) bool {
	if target == ErrOffsetProtocol {
		return true
	}
	var other *OffsetError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func offsetErr(kind OffsetErrorKind) error {
	return &OffsetError{Kind: kind}
}
