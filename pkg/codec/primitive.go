package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader reads little-endian scalars from an io.Reader and counts the bytes
// it has consumed.
type Reader struct {
	r   io.Reader
	off int
	buf [8]byte
}

// NewReader creates a Reader positioned at offset 0.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) fill(b []byte) error {
	n, err := io.ReadFull(r.r, b)
	r.off += n
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: need %d bytes at offset %d, got %d (%w)",
				ErrTruncated, len(b), r.off-n, n, err)
		}
		return err
	}
	return nil
}

func (r *Reader) readUint(size int) (uint64, error) {
	b := r.buf[:size]
	if err := r.fill(b); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	default:
		return binary.LittleEndian.Uint64(b), nil
	}
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	v, err := r.readUint(1)
	return uint8(v), err
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	v, err := r.readUint(2)
	return uint16(v), err
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.readUint(4)
	return uint32(v), err
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	return r.readUint(8)
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.readUint(1)
	return int8(v), err
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.readUint(2)
	return int16(v), err
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.readUint(4)
	return int32(v), err
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.readUint(8)
	return int64(v), err
}

// ReadBool reads one byte; any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.readUint(1)
	return v != 0, err
}

// ReadBytes reads exactly n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := r.fill(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Writer writes little-endian scalars to an io.Writer.
type Writer struct {
	w   io.Writer
	off int
	buf [8]byte
}

// NewWriter creates a Writer positioned at offset 0.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int {
	return w.off
}

func (w *Writer) write(b []byte) error {
	n, err := w.w.Write(b)
	w.off += n
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return err
}

func (w *Writer) writeUint(v uint64, size int) error {
	b := w.buf[:size]
	switch size {
	case 1:
		b[0] = uint8(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
	return w.write(b)
}

func (w *Writer) WriteU8(v uint8) error   { return w.writeUint(uint64(v), 1) }
func (w *Writer) WriteU16(v uint16) error { return w.writeUint(uint64(v), 2) }
func (w *Writer) WriteU32(v uint32) error { return w.writeUint(uint64(v), 4) }
func (w *Writer) WriteU64(v uint64) error { return w.writeUint(v, 8) }
func (w *Writer) WriteI8(v int8) error    { return w.writeUint(uint64(v), 1) }
func (w *Writer) WriteI16(v int16) error  { return w.writeUint(uint64(v), 2) }
func (w *Writer) WriteI32(v int32) error  { return w.writeUint(uint64(v), 4) }
func (w *Writer) WriteI64(v int64) error  { return w.writeUint(uint64(v), 8) }

// WriteBool writes 0x01 for true and 0x00 for false.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.writeUint(1, 1)
	}
	return w.writeUint(0, 1)
}

// WriteBytes writes b without any length prefix.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return w.write(b)
}
