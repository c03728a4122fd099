package capture

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Group is the events of one ioctl, or of one half of a blocking
// BINDER_WRITE_READ, in arrival order.
type Group []Event

// First returns the first event of the group.
func (g Group) First() (Event, bool) {
	if len(g) == 0 {
		return Event{}, false
	}
	return g[0], true
}

// Last returns the last event of the group.
func (g Group) Last() (Event, bool) {
	if len(g) == 0 {
		return Event{}, false
	}
	return g[len(g)-1], true
}

type ongoing struct {
	events      Group
	shouldSplit bool
}

// Aggregator groups events per thread.
//
// A non-blocking ioctl yields one group from its Ioctl event up to and
// including IoctlDone. A BINDER_WRITE_READ that writes a transaction and
// also reads yields the write half as soon as it is known, then a copy of
// the Ioctl event followed by the remaining events as a second group.
// Invalidate and InvalidateProcess flush the thread immediately.
type Aggregator struct {
	ongoing  map[int32]*ongoing
	nextID   uint64
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
}

type AggregatorOption func(*Aggregator)

// WithIdleTimeout ends Run when no event arrived for d.
func WithIdleTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.timeout = d }
}

func WithLogger(logger *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = logger }
}

func WithObserver(observer Observer) AggregatorOption {
	return func(a *Aggregator) { a.observer = observer }
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		ongoing:  make(map[int32]*ongoing),
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Pending returns the number of threads with an unfinished group.
func (a *Aggregator) Pending() int {
	return len(a.ongoing)
}

// Push feeds one event and returns a group when one is complete.
func (a *Aggregator) Push(ev Event) (Group, bool) {
	tid := ev.TID
	group, ok := a.ongoing[tid]
	if !ok {
		group = &ongoing{}
		a.ongoing[tid] = group
	}

	switch data := ev.Data.(type) {
	case Invalidate, IoctlDone, InvalidateProcess:
		group.events = append(group.events, ev)
		delete(a.ongoing, tid)
		return a.emit(group.events)

	case WriteRead:
		if data.Read {
			if data.Header.ReadSize > 0 {
				group.events = append(group.events, ev)
			}
			return nil, false
		}
		blocking, err := data.Blocking()
		if err != nil {
			a.observer.EventDropped(DropParse)
			a.logger.Warn("failed to parse bwr write commands",
				zap.Int32("tid", tid), zap.Error(err))
			return nil, false
		}
		hdr := data.Header
		if hdr.WriteSize == 0 || hdr.ReadSize == 0 || blocking {
			// Only one half, or a transaction whose Transaction event
			// decides the split.
			group.shouldSplit = hdr.ReadSize > 0
			group.events = append(group.events, ev)
			return nil, false
		}
		group.events = append(group.events, ev)
		return a.split(tid)

	case Transaction:
		group.events = append(group.events, ev)
		if group.shouldSplit {
			return a.split(tid)
		}

	case Ioctl:
		data.ID = a.nextID
		a.nextID++
		ev.Data = data
		group.events = append(group.events, ev)

	default:
		group.events = append(group.events, ev)
	}
	return nil, false
}

// split emits the thread's events so far and starts the next group with a
// copy of the ioctl they began with.
func (a *Aggregator) split(tid int32) (Group, bool) {
	group := a.ongoing[tid]
	delete(a.ongoing, tid)

	if first, ok := group.events.First(); ok {
		if _, isIoctl := first.Data.(Ioctl); isIoctl {
			a.ongoing[tid] = &ongoing{events: Group{first}}
		} else {
			a.logger.Warn("first event is not ioctl", zap.Int32("tid", tid), zap.Stringer("kind", first.Kind))
		}
	}
	return a.emit(group.events)
}

func (a *Aggregator) emit(g Group) (Group, bool) {
	a.observer.GroupEmitted(len(g))
	return g, true
}

// Run aggregates events from in and sends complete groups to out. It
// returns when in is closed, ctx is done or the idle timeout passes, and
// closes out.
func (a *Aggregator) Run(ctx context.Context, in <-chan Event, out chan<- Group) error {
	defer close(out)

	var idle <-chan time.Time
	var timer *time.Timer
	if a.timeout > 0 {
		timer = time.NewTimer(a.timeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			a.logger.Debug("no events within idle timeout", zap.Duration("timeout", a.timeout))
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(a.timeout)
			}
			group, done := a.Push(ev)
			if !done {
				continue
			}
			select {
			case out <- group:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
