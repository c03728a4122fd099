// Package capture turns the samples the binder tracepoints push through the
// ring buffer into events and groups them per ioctl.
package capture

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ssargent/binderdump/pkg/binder"
	"github.com/ssargent/binderdump/pkg/codec"
)

var (
	// ErrInvalidEvent is returned for samples that cannot be parsed.
	ErrInvalidEvent = errors.New("capture: invalid event")
	// ErrUnsupportedEvent is returned for event kinds the probes define but
	// never emit.
	ErrUnsupportedEvent = errors.New("capture: unsupported event kind")
)

// EventKind is the type tag at the start of every sample.
type EventKind uint32

const (
	KindInvalidate EventKind = iota
	KindIoctl
	KindCommand
	KindTransaction
	KindWriteDone
	KindWaitForWork
	KindReturn
	KindReadDone
	KindTransactionReceived
	KindIoctlDone
	// KindInvalidateProcess is sent from sched_process_exit.
	KindInvalidateProcess
	KindWrite
	KindRead
	KindTransactionData
)

var kindNames = [...]string{
	KindInvalidate:          "invalidate",
	KindIoctl:               "ioctl",
	KindCommand:             "command",
	KindTransaction:         "transaction",
	KindWriteDone:           "write_done",
	KindWaitForWork:         "wait_for_work",
	KindReturn:              "return",
	KindReadDone:            "read_done",
	KindTransactionReceived: "transaction_received",
	KindIoctlDone:           "ioctl_done",
	KindInvalidateProcess:   "invalidate_process",
	KindWrite:               "write",
	KindRead:                "read",
	KindTransactionData:     "transaction_data",
}

func (k EventKind) Valid() bool {
	return k <= KindTransactionData
}

func (k EventKind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint32(k))
}

// Kernel side layouts, see bpf/common_types.h.
type (
	rawHeader struct {
		Kind      EventKind
		PID       int32
		TID       int32
		Padding   uint32
		Timestamp uint64
	}

	rawIoctl struct {
		Fd   int32
		Comm [16]uint8
		UID  uint32
		GID  uint32
		Cmd  binder.Ioctl
		Arg  uint64
	}

	rawIoctlDone struct {
		Ret int32
	}

	rawTransactionReceived struct {
		DebugID int32
	}
)

// Event is one parsed sample.
type Event struct {
	PID       int32
	TID       int32
	Timestamp uint64 // CLOCK_BOOTTIME nanoseconds
	Kind      EventKind
	Data      EventData
}

// EventData is one of Invalidate, Ioctl, IoctlDone, WriteRead,
// Transaction, TransactionReceived, TransactionData or InvalidateProcess.
type EventData interface {
	eventData()
}

// Invalidate reports that the probes lost track of the thread's ioctl.
type Invalidate struct{}

// InvalidateProcess reports that the thread exited.
type InvalidateProcess struct{}

// Ioctl is the entry of an ioctl on a binder fd.
type Ioctl struct {
	Fd   int32
	Comm string
	UID  uint32
	GID  uint32
	Cmd  binder.Ioctl
	Arg  uint64
	// ID is assigned by the Aggregator.
	ID uint64
}

// IoctlDone carries the ioctl return value.
type IoctlDone struct {
	Ret int32
}

// WriteRead is the binder_write_read argument with the bytes of the half
// it was captured for.
type WriteRead struct {
	Read   bool
	Header binder.WriteReadHeader
	Buffer []byte
}

// Blocking reports whether the write is expected to block until a reply
// arrives, which is the case when it carries a transaction.
func (w WriteRead) Blocking() (bool, error) {
	if w.Read {
		return false, nil
	}
	return binder.AnyTransaction(w.Buffer)
}

// Transaction is the binder_transaction tracepoint.
type Transaction struct {
	binder.Transaction
}

// TransactionReceived is the binder_transaction_received tracepoint.
type TransactionReceived struct {
	DebugID int32
}

// TransactionData holds the copied data or offsets buffer of a transaction.
// TotalSize is the size of the buffer in the sender, Data may be shorter.
type TransactionData struct {
	Offsets   bool
	TotalSize uint64
	Data      []byte
}

func (Invalidate) eventData()          {}
func (InvalidateProcess) eventData()   {}
func (Ioctl) eventData()               {}
func (IoctlDone) eventData()           {}
func (WriteRead) eventData()           {}
func (Transaction) eventData()         {}
func (TransactionReceived) eventData() {}
func (TransactionData) eventData()     {}

// Truncated reports whether the probe could not copy the whole buffer.
func (t TransactionData) Truncated() bool {
	return uint64(len(t.Data)) < t.TotalSize
}

// ParseEvent decodes one ring buffer sample.
func ParseEvent(sample []byte) (Event, error) {
	r := bytes.NewReader(sample)

	var hdr rawHeader
	if err := codec.Read(r, &hdr); err != nil {
		return Event{}, fmt.Errorf("%w: header: %w", ErrInvalidEvent, err)
	}

	ev := Event{
		PID:       hdr.PID,
		TID:       hdr.TID,
		Timestamp: hdr.Timestamp,
		Kind:      hdr.Kind,
	}

	var err error
	switch hdr.Kind {
	case KindInvalidate:
		ev.Data = Invalidate{}
	case KindInvalidateProcess:
		ev.Data = InvalidateProcess{}
	case KindIoctl:
		var raw rawIoctl
		if err = codec.Read(r, &raw); err == nil {
			ev.Data = Ioctl{
				Fd:   raw.Fd,
				Comm: cString(raw.Comm[:]),
				UID:  raw.UID,
				GID:  raw.GID,
				Cmd:  raw.Cmd,
				Arg:  raw.Arg,
			}
		}
	case KindIoctlDone:
		var raw rawIoctlDone
		if err = codec.Read(r, &raw); err == nil {
			ev.Data = IoctlDone(raw)
		}
	case KindTransaction:
		var raw binder.Transaction
		if err = codec.Read(r, &raw); err == nil {
			ev.Data = Transaction{raw}
		}
	case KindTransactionReceived:
		var raw rawTransactionReceived
		if err = codec.Read(r, &raw); err == nil {
			ev.Data = TransactionReceived(raw)
		}
	case KindWrite, KindRead:
		var bwr binder.WriteReadHeader
		if err = codec.Read(r, &bwr); err == nil {
			ev.Data = WriteRead{
				Read:   hdr.Kind == KindRead,
				Header: bwr,
				Buffer: rest(sample, r),
			}
		}
	case KindTransactionData:
		ev.Data, err = parseTransactionData(sample, r)
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrUnsupportedEvent, hdr.Kind)
	}
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s: %w", ErrInvalidEvent, hdr.Kind, err)
	}
	return ev, nil
}

func parseTransactionData(sample []byte, r *bytes.Reader) (EventData, error) {
	var hdr binder.WriteReadHeader
	if err := codec.Read(r, &hdr); err != nil {
		return nil, err
	}
	// The probe flags which buffer it copied through the buffer pointers.
	switch {
	case hdr.WriteBuffer == 1:
		return TransactionData{TotalSize: hdr.WriteSize, Data: rest(sample, r)}, nil
	case hdr.ReadBuffer == 1:
		return TransactionData{Offsets: true, TotalSize: hdr.ReadSize, Data: rest(sample, r)}, nil
	}
	return nil, errors.New("neither data nor offsets flagged")
}

// rest copies what r has not consumed yet.
func rest(sample []byte, r *bytes.Reader) []byte {
	return bytes.Clone(sample[len(sample)-r.Len():])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
