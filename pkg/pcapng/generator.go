package pcapng

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/binderdump/pkg/binder"
	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/codec"
)

// LinkTypeUpperPDU is LINKTYPE_WIRESHARK_UPPER_PDU.
const LinkTypeUpperPDU = layers.LinkType(252)

// nanosecond timestamps
const tsResolution = 9

var (
	// ErrEmptyGroup is returned for a group without events.
	ErrEmptyGroup = errors.New("pcapng: empty event group")
	// ErrNoProcess is returned when the calling thread cannot be resolved.
	ErrNoProcess = errors.New("pcapng: calling thread not resolved")
)

// Observer is notified about packets. The metrics layer implements it.
type Observer interface {
	PacketWritten(size int)
	GroupDropped(reason string)
	OffsetFailure()
}

type nopObserver struct{}

func (nopObserver) PacketWritten(int)   {}
func (nopObserver) GroupDropped(string) {}
func (nopObserver) OffsetFailure()      {}

// PacketGenerator converts event groups to packets, one pcapng interface per
// binder device.
type PacketGenerator struct {
	writer    *pcapgo.NgWriter
	cache     *capture.ProcessCache
	timeshift time.Duration
	link      []byte
	logger    *zap.Logger
	observer  Observer
	verify    bool
}

type Option func(*PacketGenerator)

func WithLogger(logger *zap.Logger) Option {
	return func(g *PacketGenerator) { g.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(g *PacketGenerator) { g.observer = observer }
}

// WithVerify decodes every payload again before writing it and reports
// payloads whose offset tree cannot be rebuilt.
func WithVerify(verify bool) Option {
	return func(g *PacketGenerator) { g.verify = verify }
}

// NewPacketGenerator writes the section header and the interface blocks.
func NewPacketGenerator(w io.Writer, info CaptureInfo, cache *capture.ProcessCache, opts ...Option) (*PacketGenerator, error) {
	section := pcapgo.NgWriterOptions{
		SectionInfo: pcapgo.NgSectionInfo{
			Hardware:    info.Model,
			OS:          info.OS,
			Application: info.Application,
			Comment:     info.comment(),
		},
	}

	var writer *pcapgo.NgWriter
	for i, iface := range binder.Interfaces {
		intf := pcapgo.NgInterface{
			Name:                iface.Path(),
			LinkType:            LinkTypeUpperPDU,
			TimestampResolution: tsResolution,
		}
		if i == 0 {
			var err error
			if writer, err = pcapgo.NewNgWriterInterface(w, intf, section); err != nil {
				return nil, fmt.Errorf("failed to write section header: %w", err)
			}
			continue
		}
		id, err := writer.AddInterface(intf)
		if err != nil {
			return nil, fmt.Errorf("failed to add interface %s: %w", iface, err)
		}
		if id != int(iface) {
			return nil, fmt.Errorf("interface %s got index %d", iface, id)
		}
	}

	g := &PacketGenerator{
		writer:    writer,
		cache:     cache,
		timeshift: info.Timeshift,
		link:      binder.LinkHeader(),
		logger:    zap.NewNop(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// HandleGroup builds the packet payload for one group.
func (g *PacketGenerator) HandleGroup(group capture.Group) (*binder.EventProtocol, error) {
	last, ok := group.Last()
	if !ok {
		return nil, ErrEmptyGroup
	}

	if _, dead := last.Data.(capture.InvalidateProcess); dead {
		builder := binder.NewEventBuilder(last.Timestamp, last.PID, last.TID).EventType(binder.DeadProcess)
		if info, ok := g.cache.Invalidate(last.PID, last.TID); ok {
			builder.Cmdline(info.Cmdline).Comm(info.Comm)
		}
		return builder.Build(), nil
	}

	builder := binder.NewEventBuilder(last.Timestamp, last.PID, last.TID)
	var (
		ioctl binder.IoctlBuilder
		bwr   binder.WriteReadBuilder
		txn   binder.TransactionBuilder
		comm  string
	)

loop:
	for _, ev := range group {
		switch data := ev.Data.(type) {
		case capture.Invalidate:
			break loop
		case capture.Ioctl:
			ioctl.Request(data.Fd, data.Cmd, data.Arg, data.UID, data.GID, data.ID)
			comm = data.Comm
			builder.EventType(binder.SplitIoctl)
		case capture.WriteRead:
			if data.Read {
				bwr.Read(data.Header, data.Buffer)
			} else {
				bwr.Write(data.Header, data.Buffer)
			}
		case capture.IoctlDone:
			ioctl.Result(data.Ret)
			builder.EventType(binder.FinishedIoctl)
		case capture.Transaction:
			var targetComm, targetCmdline string
			if target, err := g.cache.Get(data.ToProc, data.ToThread, ""); err == nil {
				targetComm, targetCmdline = target.Comm, target.Cmdline
			} else {
				g.logger.Debug("transaction target not resolved",
					zap.Int32("to_proc", data.ToProc), zap.Int32("to_thread", data.ToThread), zap.Error(err))
			}
			txn.Transaction(data.Transaction, targetComm, targetCmdline)
		}
	}

	info, err := g.cache.Get(last.PID, last.TID, comm)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d tid %d: %w", ErrNoProcess, last.PID, last.TID, err)
	}
	if comm != "" {
		builder.Comm(comm)
	}

	ioctlData := ioctl.WriteRead(bwr.Transaction(txn.Build()).Build()).Build()
	if ioctlData != nil {
		if iface, ok := info.Interface(ioctlData.Fd); ok {
			builder.Interface(iface)
		}
	}
	return builder.Cmdline(info.Cmdline).Ioctl(ioctlData).Build(), nil
}

// WritePacket writes ev on the interface of its binder device.
func (g *PacketGenerator) WritePacket(ev *binder.EventProtocol) error {
	payload, err := codec.Marshal(ev)
	if err != nil {
		return err
	}
	if g.verify {
		g.verifyPayload(payload)
	}
	data := make([]byte, 0, len(g.link)+len(payload))
	data = append(append(data, g.link...), payload...)

	ci := gopacket.CaptureInfo{
		Timestamp:      time.Unix(0, int64(ev.Timestamp)).Add(g.timeshift),
		CaptureLength:  len(data),
		Length:         len(data),
		InterfaceIndex: int(ev.BinderInterface),
	}
	if err := g.writer.WritePacket(ci, data); err != nil {
		return err
	}
	g.observer.PacketWritten(len(data))
	return nil
}

func (g *PacketGenerator) verifyPayload(payload []byte) {
	var decoded binder.EventProtocol
	layout, err := codec.UnmarshalWithOffsets(payload, &decoded)
	if err == nil {
		err = layout.Err
	}
	if err != nil {
		g.observer.OffsetFailure()
		g.logger.Warn("packet offsets cannot be rebuilt", zap.Int("size", len(payload)), zap.Error(err))
	}
}

// Flush writes buffered blocks to the underlying writer.
func (g *PacketGenerator) Flush() error {
	return g.writer.Flush()
}

// Run writes a packet per group until groups is closed or ctx is done.
// Groups that cannot be converted are logged and skipped; write errors stop
// the run.
func (g *PacketGenerator) Run(ctx context.Context, groups <-chan capture.Group) error {
	for {
		select {
		case <-ctx.Done():
			return multierr.Append(ctx.Err(), g.Flush())
		case group, ok := <-groups:
			if !ok {
				return g.Flush()
			}
			ev, err := g.HandleGroup(group)
			if err != nil {
				reason := capture.DropInvalid
				if errors.Is(err, ErrNoProcess) {
					reason = capture.DropNoProcess
				}
				g.observer.GroupDropped(reason)
				g.logger.Warn("failed to handle events", zap.Int("events", len(group)), zap.Error(err))
				continue
			}
			if err := g.WritePacket(ev); err != nil {
				return fmt.Errorf("failed to write packet: %w", err)
			}
		}
	}
}
