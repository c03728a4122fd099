package pipeline

import (
	"sync/atomic"

	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/pcapng"
)

// Observer is notified by every stage of the pipeline.
type Observer interface {
	capture.Observer
	pcapng.Observer
}

// Snapshot is a copy of the pipeline counters.
type Snapshot struct {
	Events         uint64
	Dropped        uint64
	Groups         uint64
	GroupsDropped  uint64
	Packets        uint64
	Bytes          uint64
	OffsetFailures uint64
}

// Stats counts what flows through the pipeline and forwards every
// notification to next, if set.
type Stats struct {
	next Observer

	events         atomic.Uint64
	dropped        atomic.Uint64
	groups         atomic.Uint64
	groupsDropped  atomic.Uint64
	packets        atomic.Uint64
	bytes          atomic.Uint64
	offsetFailures atomic.Uint64
}

var _ Observer = (*Stats)(nil)

func NewStats(next Observer) *Stats {
	return &Stats{next: next}
}

func (s *Stats) EventReceived(kind capture.EventKind) {
	s.events.Add(1)
	if s.next != nil {
		s.next.EventReceived(kind)
	}
}

func (s *Stats) EventDropped(reason string) {
	s.dropped.Add(1)
	if s.next != nil {
		s.next.EventDropped(reason)
	}
}

func (s *Stats) GroupEmitted(events int) {
	s.groups.Add(1)
	if s.next != nil {
		s.next.GroupEmitted(events)
	}
}

func (s *Stats) GroupDropped(reason string) {
	s.groupsDropped.Add(1)
	if s.next != nil {
		s.next.GroupDropped(reason)
	}
}

func (s *Stats) PacketWritten(size int) {
	s.packets.Add(1)
	s.bytes.Add(uint64(size))
	if s.next != nil {
		s.next.PacketWritten(size)
	}
}

func (s *Stats) OffsetFailure() {
	s.offsetFailures.Add(1)
	if s.next != nil {
		s.next.OffsetFailure()
	}
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Events:         s.events.Load(),
		Dropped:        s.dropped.Load(),
		Groups:         s.groups.Load(),
		GroupsDropped:  s.groupsDropped.Load(),
		Packets:        s.packets.Load(),
		Bytes:          s.bytes.Load(),
		OffsetFailures: s.offsetFailures.Load(),
	}
}
