// Package pipeline runs a capture from an event source to a pcapng file:
// samples are decoded, grouped per thread and written as packets.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/pcapng"
)

var ErrNoSource = errors.New("pipeline: no event source")

// Config wires the stages together. Source and Cache are required.
type Config struct {
	Source capture.Source
	Cache  *capture.ProcessCache
	Info   pcapng.CaptureInfo
	Output io.Writer

	ChannelSize int
	// IdleTimeout ends the run when no event arrives for that long. Zero
	// waits forever.
	IdleTimeout time.Duration
	Verify      bool

	Observer Observer
	Logger   *zap.Logger
}

type Pipeline struct {
	source      capture.Source
	decoder     *capture.Decoder
	aggregator  *capture.Aggregator
	generator   *pcapng.PacketGenerator
	stats       *Stats
	channelSize int
	logger      *zap.Logger
}

// New writes the capture file header to cfg.Output and prepares the stages.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.Cache == nil {
		return nil, errors.New("pipeline: no process cache")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = capture.DefaultChannelSize
	}

	stats := NewStats(cfg.Observer)
	generator, err := pcapng.NewPacketGenerator(cfg.Output, cfg.Info, cfg.Cache,
		pcapng.WithLogger(logger.Named("pcapng")),
		pcapng.WithObserver(stats),
		pcapng.WithVerify(cfg.Verify),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create packet generator: %w", err)
	}

	return &Pipeline{
		source:  cfg.Source,
		decoder: capture.NewDecoder(logger.Named("decoder"), stats),
		aggregator: capture.NewAggregator(
			capture.WithIdleTimeout(cfg.IdleTimeout),
			capture.WithLogger(logger.Named("aggregator")),
			capture.WithObserver(stats),
		),
		generator:   generator,
		stats:       stats,
		channelSize: cfg.ChannelSize,
		logger:      logger,
	}, nil
}

func (p *Pipeline) Stats() Snapshot {
	return p.stats.Snapshot()
}

// Run moves events until the source ends, the idle timeout passes or ctx is
// done, then flushes the capture file and closes the source. Cancelling ctx
// is a normal way to stop and is not reported as an error.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Append(err, p.source.Close())
	}()

	g, gctx := errgroup.WithContext(ctx)
	decodeCtx, stopDecoder := context.WithCancel(gctx)
	defer stopDecoder()

	events := make(chan capture.Event, p.channelSize)
	groups := make(chan capture.Group, p.channelSize)

	g.Go(func() error {
		p.decoder.Run(decodeCtx, p.source.Samples(), events)
		return nil
	})
	g.Go(func() error {
		// the decoder has nobody to deliver to once aggregation ends
		defer stopDecoder()
		return p.aggregator.Run(gctx, events, groups)
	})
	g.Go(func() error {
		// groups is always closed by the aggregator, so the generator
		// drains everything already aggregated before it returns
		return p.generator.Run(context.WithoutCancel(gctx), groups)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}

	snap := p.stats.Snapshot()
	p.logger.Info("capture finished",
		zap.Uint64("events", snap.Events),
		zap.Uint64("dropped", snap.Dropped),
		zap.Uint64("packets", snap.Packets),
		zap.Uint64("bytes", snap.Bytes),
		zap.Int("pending", p.aggregator.Pending()),
	)
	return err
}
