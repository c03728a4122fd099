package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ssargent/binderdump/pkg/spool"
)

// Source produces raw ring buffer samples. The channel is closed once the
// source is exhausted or closed.
type Source interface {
	Samples() <-chan []byte
	Close() error
}

// Observer is notified as samples move through the pipeline. The metrics
// layer implements it.
type Observer interface {
	EventReceived(kind EventKind)
	EventDropped(reason string)
	GroupEmitted(events int)
}

type nopObserver struct{}

func (nopObserver) EventReceived(EventKind) {}
func (nopObserver) EventDropped(string)     {}
func (nopObserver) GroupEmitted(int)        {}

// Drop reasons reported to the Observer.
const (
	DropInvalid     = "invalid"
	DropUnsupported = "unsupported"
	DropParse       = "bwr_parse"
	DropNoProcess   = "no_process"
)

// Decoder parses samples into events, dropping what cannot be parsed.
type Decoder struct {
	logger   *zap.Logger
	observer Observer
}

func NewDecoder(logger *zap.Logger, observer Observer) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Decoder{logger: logger, observer: observer}
}

// Run decodes samples until in is closed or ctx is done, then closes out.
func (d *Decoder) Run(ctx context.Context, in <-chan []byte, out chan<- Event) {
	defer close(out)
	for {
		var sample []byte
		var ok bool
		select {
		case <-ctx.Done():
			return
		case sample, ok = <-in:
			if !ok {
				return
			}
		}

		ev, err := ParseEvent(sample)
		if err != nil {
			reason := DropInvalid
			if errors.Is(err, ErrUnsupportedEvent) {
				reason = DropUnsupported
			}
			d.observer.EventDropped(reason)
			d.logger.Warn("invalid event received from ring buffer",
				zap.Int("size", len(sample)), zap.Error(err))
			continue
		}
		if td, ok := ev.Data.(TransactionData); ok && td.Truncated() {
			d.logger.Warn("truncated transaction buffer",
				zap.Bool("offsets", td.Offsets),
				zap.Int("copied", len(td.Data)),
				zap.Uint64("total", td.TotalSize))
		}
		d.observer.EventReceived(ev.Kind)

		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// tee forwards samples from a source while appending each to a spool.
type tee struct {
	src     Source
	spool   *spool.Writer
	logger  *zap.Logger
	samples chan []byte
	wg      sync.WaitGroup
}

// Tee returns a Source that yields the samples of src and spools a copy of
// each. Spool failures are logged and do not stop the capture.
func Tee(src Source, w *spool.Writer, logger *zap.Logger) Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &tee{
		src:     src,
		spool:   w,
		logger:  logger,
		samples: make(chan []byte, cap(src.Samples())),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

func (t *tee) run() {
	defer t.wg.Done()
	defer close(t.samples)
	for sample := range t.src.Samples() {
		if _, err := t.spool.Append(sample); err != nil {
			t.logger.Warn("failed to spool sample", zap.String("path", t.spool.Path()), zap.Error(err))
		}
		t.samples <- sample
	}
}

func (t *tee) Samples() <-chan []byte {
	return t.samples
}

// Close closes the wrapped source and returns once every sample it produced
// has been spooled. The spool writer stays owned by the caller.
func (t *tee) Close() error {
	err := t.src.Close()
	// drain so run can observe the closed source
	go func() {
		for range t.samples {
		}
	}()
	t.wg.Wait()
	return err
}

// ReplaySource plays back a spool file.
type ReplaySource struct {
	reader  *spool.Reader
	logger  *zap.Logger
	samples chan []byte
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewReplaySource opens path and starts streaming its frames.
func NewReplaySource(path string, channelSize int, logger *zap.Logger) (*ReplaySource, error) {
	reader, err := spool.NewReader(spool.ReaderConfig{FilePath: path})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReplaySource{
		reader:  reader,
		logger:  logger,
		samples: make(chan []byte, channelSize),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *ReplaySource) run() {
	defer s.wg.Done()
	defer close(s.samples)
	for {
		frame, err := s.reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("stopping replay", zap.Int64("offset", s.reader.Offset()), zap.Error(err))
			}
			return
		}
		select {
		case s.samples <- frame.Sample:
		case <-s.done:
			return
		}
	}
}

func (s *ReplaySource) Samples() <-chan []byte {
	return s.samples
}

func (s *ReplaySource) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return s.reader.Close()
}

// SliceSource yields a fixed list of samples. It backs tests and tools that
// already hold the samples in memory.
type SliceSource struct {
	samples chan []byte
}

func NewSliceSource(samples ...[]byte) *SliceSource {
	ch := make(chan []byte, len(samples))
	for _, s := range samples {
		ch <- s
	}
	close(ch)
	return &SliceSource{samples: ch}
}

func (s *SliceSource) Samples() <-chan []byte { return s.samples }
func (s *SliceSource) Close() error           { return nil }
