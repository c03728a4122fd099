package spool

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ssargent/binderdump/pkg/codec"
)

// Reader provides sequential access to the frames of a spool file
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
}

// NewReader opens the spool file at config.StartOffset
func NewReader(config ReaderConfig) (*Reader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	return &Reader{
		file:   file,
		reader: bufio.NewReader(file),
		offset: config.StartOffset,
	}, nil
}

// Next returns the next frame. It returns io.EOF at a clean end of file and
// ErrCorruption for a torn or mismatching frame.
func (r *Reader) Next() (Frame, error) {
	if _, err := r.reader.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, err
	}

	counter := &countingReader{r: r.reader}
	var frame Frame
	err := codec.Read(counter, &frame)
	r.offset += counter.n
	if err != nil {
		if errors.Is(err, codec.ErrTruncated) {
			return Frame{}, fmt.Errorf("%w: torn frame at offset %d", ErrCorruption, r.offset-counter.n)
		}
		return Frame{}, err
	}

	if !frame.Valid() {
		return Frame{}, fmt.Errorf("%w: checksum mismatch at offset %d", ErrCorruption, r.offset-counter.n)
	}
	return frame, nil
}

// Offset returns the current read offset
func (r *Reader) Offset() int64 {
	return r.offset
}

// Close closes the spool file
func (r *Reader) Close() error {
	return r.file.Close()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
