package spool

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/ssargent/binderdump/pkg/codec"
)

const defaultBufferSize = 64 * 1024

// Writer appends frames to the spool file
type Writer struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     WriterConfig
	mutex      sync.Mutex
	offset     int64 // Current write offset
}

// NewWriter opens or creates the spool file and positions at its end
func NewWriter(config WriterConfig) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, multierr.Append(err, file.Close())
	}

	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}

	w := &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, config.BufferSize),
		config: config,
		offset: offset,
	}

	if config.FsyncInterval > 0 {
		w.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			_ = w.sync()
		})
	}

	return w, nil
}

// Append writes sample as a new frame and returns the offset the frame
// starts at. Samples longer than 65535 bytes are rejected.
func (w *Writer) Append(sample []byte) (int64, error) {
	data, err := codec.Marshal(NewFrame(sample))
	if err != nil {
		return 0, err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := w.writer.Write(data)
	if err != nil {
		return 0, err
	}

	frameOffset := w.offset
	w.offset += int64(n)

	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}

	return frameOffset, nil
}

// Sync forces a fsync to disk
func (w *Writer) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *Writer) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes pending frames and closes the file
func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	return multierr.Append(w.sync(), w.file.Close())
}

// Size returns the current size of the spool file
func (w *Writer) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the file path
func (w *Writer) Path() string {
	return w.config.FilePath
}
