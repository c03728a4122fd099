package binder

import (
	"fmt"

	"github.com/ssargent/binderdump/pkg/codec"
)

// EventType tells how a packet relates to the ioctl it was cut from.
type EventType uint8

const (
	// FinishedIoctl packets cover an ioctl up to its return.
	FinishedIoctl EventType = 0
	// SplitIoctl packets cover the write half of an ioctl that blocked.
	SplitIoctl EventType = 1
	// DeadProcess packets report a process that exited.
	DeadProcess EventType = 2
	Invalid     EventType = 4
)

var eventTypeNames = map[EventType]string{
	FinishedIoctl: "FinishedIoctl",
	SplitIoctl:    "SplitIoctl",
	DeadProcess:   "DeadProcess",
	Invalid:       "Invalid",
}

func (t EventType) Valid() bool {
	_, ok := eventTypeNames[t]
	return ok
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", uint8(t))
}

func (EventType) Strings() []codec.ValueString {
	return valueStrings(eventTypeNames)
}

// WriteReadType classifies a BINDER_WRITE_READ record.
type WriteReadType uint8

const (
	Write WriteReadType = iota
	Read
	WriteTransaction
	ReadTransaction
)

var writeReadTypeNames = map[WriteReadType]string{
	Write:            "Write",
	Read:             "Read",
	WriteTransaction: "WriteTransaction",
	ReadTransaction:  "ReadTransaction",
}

func (t WriteReadType) Valid() bool {
	return t <= ReadTransaction
}

func (t WriteReadType) String() string {
	if name, ok := writeReadTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("WriteReadType(%d)", uint8(t))
}

func (WriteReadType) Strings() []codec.ValueString {
	return valueStrings(writeReadTypeNames)
}

func (t WriteReadType) IsRead() bool {
	return t == Read || t == ReadTransaction
}

func (t WriteReadType) IsWrite() bool {
	return !t.IsRead()
}

func (t WriteReadType) IsTransaction() bool {
	return t == WriteTransaction || t == ReadTransaction
}

// WithTransaction returns the transaction flavour of t.
func (t WriteReadType) WithTransaction() WriteReadType {
	if t.IsRead() {
		return ReadTransaction
	}
	return WriteTransaction
}

// EventProtocol is the payload of every captured packet.
type EventProtocol struct {
	Timestamp       uint64
	PID             int32
	TID             int32
	Comm            [16]uint8 `wire:",text"`
	EventType       EventType
	BinderInterface Interface
	Cmdline         string
	IoctlData       *IoctlProtocol
}

// CommString returns Comm up to its first NUL.
func (e *EventProtocol) CommString() string {
	return cString(e.Comm[:])
}

// IoctlProtocol describes one ioctl call on a binder fd.
type IoctlProtocol struct {
	Fd      int32
	Cmd     Ioctl
	Arg     uint64 `wire:",hex"`
	Result  int32
	UID     uint32
	GID     uint32
	IoctlID uint64
	// BWR is only set for BINDER_WRITE_READ.
	BWR *WriteReadProtocol
}

// WriteReadProtocol is the binder_write_read argument together with the
// buffer contents the kernel consumed or produced.
type WriteReadProtocol struct {
	BwrType       WriteReadType
	WriteSize     uint64
	WriteConsumed uint64
	WriteBuffer   uint64 `wire:",hex"`
	ReadSize      uint64
	ReadConsumed  uint64
	ReadBuffer    uint64 `wire:",hex"`
	Data          []uint8
	Transaction   *TransactionProtocol
}

// Commands parses Data as a BC_ stream. It is only meaningful for writes.
func (w *WriteReadProtocol) Commands() ([]Op, error) {
	return ParseCommands(w.Data)
}

// Returns parses Data as a BR_ stream. It is only meaningful for reads.
func (w *WriteReadProtocol) Returns() ([]Op, error) {
	return ParseReturns(w.Data)
}

// TransactionProtocol is a transaction plus what is known about its target.
type TransactionProtocol struct {
	Transaction   Transaction
	TargetComm    [16]uint8 `wire:",text"`
	TargetCmdline []uint8   `wire:",text"`
}

// Transaction mirrors the binder_transaction tracepoint.
type Transaction struct {
	DebugID    int32
	TargetNode int32
	ToProc     int32
	ToThread   int32
	Reply      int32
	Code       uint32 `wire:",hex"`
	Flags      uint32 `wire:",hex"`
}

// WriteReadHeader mirrors struct binder_write_read as read from userspace.
type WriteReadHeader struct {
	WriteSize     uint64
	WriteConsumed uint64
	WriteBuffer   uint64
	ReadSize      uint64
	ReadConsumed  uint64
	ReadBuffer    uint64
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func commBytes(s string) [16]uint8 {
	var out [16]uint8
	copy(out[:], s)
	return out
}
