//go:build linux

package capture

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const tracingOnPath = "/sys/kernel/tracing/tracing_on"

// EBPFSource loads the binder probes, attaches every tracepoint program of
// the object and streams the ring buffer.
type EBPFSource struct {
	coll    *ebpf.Collection
	links   []link.Link
	reader  *ringbuf.Reader
	logger  *zap.Logger
	samples chan []byte
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// OpenEBPF loads cfg.ObjectPath and starts reading cfg.RingBufferMap.
func OpenEBPF(cfg EBPFConfig) (_ *EBPFSource, err error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("failed to remove memlock: %w", err)
	}
	// tracing is off by default on android
	if err := os.WriteFile(tracingOnPath, []byte("1\n"), 0); err != nil {
		logger.Warn("failed to enable tracing", zap.String("path", tracingOnPath), zap.Error(err))
	}

	spec, err := ebpf.LoadCollectionSpec(cfg.ObjectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfg.ObjectPath, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	s := &EBPFSource{
		coll:    coll,
		logger:  logger,
		samples: make(chan []byte, cfg.ChannelSize),
		done:    make(chan struct{}),
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, s.closeResources())
		}
	}()

	for name, prog := range spec.Programs {
		group, event, ok := tracepointName(prog.SectionName)
		if !ok {
			continue
		}
		l, err := link.Tracepoint(group, event, coll.Programs[name], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s/%s: %w", group, event, err)
		}
		s.links = append(s.links, l)
		logger.Debug("attached tracepoint", zap.String("group", group), zap.String("event", event))
	}

	m, ok := coll.Maps[cfg.RingBufferMap]
	if !ok {
		return nil, fmt.Errorf("map %q not found in %s", cfg.RingBufferMap, cfg.ObjectPath)
	}
	s.reader, err = ringbuf.NewReader(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create ringbuf reader: %w", err)
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

// tracepointName splits a "tp/<group>/<event>" section.
func tracepointName(section string) (string, string, bool) {
	rest, ok := strings.CutPrefix(section, "tp/")
	if !ok {
		return "", "", false
	}
	return strings.Cut(rest, "/")
}

func (s *EBPFSource) run() {
	defer s.wg.Done()
	defer close(s.samples)
	for {
		record, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return
			}
			s.logger.Warn("error reading from ring buffer", zap.Error(err))
			continue
		}
		select {
		case s.samples <- record.RawSample:
		case <-s.done:
			return
		}
	}
}

func (s *EBPFSource) Samples() <-chan []byte {
	return s.samples
}

// Close detaches the probes and stops the reader.
func (s *EBPFSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.reader != nil {
			err = s.reader.Close()
		}
		s.wg.Wait()
		s.reader = nil
		err = multierr.Append(err, s.closeResources())
	})
	return err
}

func (s *EBPFSource) closeResources() error {
	var err error
	if s.reader != nil {
		err = multierr.Append(err, s.reader.Close())
	}
	for _, l := range s.links {
		err = multierr.Append(err, l.Close())
	}
	s.links = nil
	s.coll.Close()
	return err
}
