// Package spool keeps an append-only log of raw ring buffer samples so a
// capture can be replayed through the pipeline later.
package spool

import (
	"errors"
	"hash/crc32"
	"time"
)

// ErrCorruption is returned when a frame fails its checksum or the file ends
// in the middle of a frame.
var ErrCorruption = errors.New("spool: data corruption detected")

// Frame is one spooled sample as laid out on disk.
type Frame struct {
	CRC32     uint32 // checksum of Timestamp and Sample
	Timestamp uint64 // wall clock at append, unix nanoseconds
	Sample    []uint8
}

// NewFrame wraps sample with the current time and its checksum.
func NewFrame(sample []byte) Frame {
	f := Frame{
		Timestamp: uint64(time.Now().UnixNano()),
		Sample:    sample,
	}
	f.CRC32 = f.checksum()
	return f
}

// Valid reports whether the stored checksum matches the frame contents.
func (f Frame) Valid() bool {
	return f.CRC32 == f.checksum()
}

func (f Frame) checksum() uint32 {
	var ts [8]byte
	for i := range ts {
		ts[i] = byte(f.Timestamp >> (8 * i))
	}
	crc := crc32.ChecksumIEEE(ts[:])
	return crc32.Update(crc, crc32.IEEETable, f.Sample)
}

// WriterConfig holds configuration for the spool writer
type WriterConfig struct {
	FilePath      string        // Path to the spool file
	FsyncInterval time.Duration // How often to fsync (0 = every append)
	BufferSize    int           // Write buffer size
}

// ReaderConfig holds configuration for the spool reader
type ReaderConfig struct {
	FilePath    string // Path to the spool file
	StartOffset int64  // Offset to start reading from
}
