package binder

import (
	"strings"
)

// EventBuilder assembles an EventProtocol from the pieces an event group
// provides. The zero event type is Invalid until set.
type EventBuilder struct {
	event EventProtocol
}

func NewEventBuilder(timestamp uint64, pid, tid int32) *EventBuilder {
	return &EventBuilder{event: EventProtocol{
		Timestamp: timestamp,
		PID:       pid,
		TID:       tid,
		EventType: Invalid,
	}}
}

func (b *EventBuilder) Comm(comm string) *EventBuilder {
	b.event.Comm = commBytes(comm)
	return b
}

func (b *EventBuilder) EventType(t EventType) *EventBuilder {
	b.event.EventType = t
	return b
}

func (b *EventBuilder) Interface(i Interface) *EventBuilder {
	b.event.BinderInterface = i
	return b
}

// Cmdline sets the process command line, replacing invalid UTF-8.
func (b *EventBuilder) Cmdline(cmdline string) *EventBuilder {
	b.event.Cmdline = strings.ToValidUTF8(cmdline, "�")
	return b
}

func (b *EventBuilder) Ioctl(ioctl *IoctlProtocol) *EventBuilder {
	b.event.IoctlData = ioctl
	return b
}

func (b *EventBuilder) Build() *EventProtocol {
	event := b.event
	return &event
}

// IoctlBuilder assembles an IoctlProtocol. Build returns nil until Request
// has been called.
type IoctlBuilder struct {
	ioctl IoctlProtocol
	seen  bool
	bwr   *WriteReadProtocol
}

// Request records the ioctl entry: the fd, request and caller credentials.
func (b *IoctlBuilder) Request(fd int32, cmd Ioctl, arg uint64, uid, gid uint32, id uint64) *IoctlBuilder {
	b.ioctl.Fd = fd
	b.ioctl.Cmd = cmd
	b.ioctl.Arg = arg
	b.ioctl.UID = uid
	b.ioctl.GID = gid
	b.ioctl.IoctlID = id
	b.seen = true
	return b
}

func (b *IoctlBuilder) Result(result int32) *IoctlBuilder {
	b.ioctl.Result = result
	return b
}

func (b *IoctlBuilder) WriteRead(bwr *WriteReadProtocol) *IoctlBuilder {
	b.bwr = bwr
	return b
}

func (b *IoctlBuilder) Build() *IoctlProtocol {
	if !b.seen {
		return nil
	}
	ioctl := b.ioctl
	if ioctl.Cmd == WriteRead {
		ioctl.BWR = b.bwr
	}
	return &ioctl
}

// WriteReadBuilder assembles a WriteReadProtocol. When a group carries
// more than one buffer, the last one wins.
type WriteReadBuilder struct {
	bwr  WriteReadProtocol
	seen bool
	txn  *TransactionProtocol
}

// Write records the write half of a BINDER_WRITE_READ with the consumed
// command bytes.
func (b *WriteReadBuilder) Write(hdr WriteReadHeader, data []byte) *WriteReadBuilder {
	b.set(Write, hdr, data)
	return b
}

// Read records the read half with the returned bytes.
func (b *WriteReadBuilder) Read(hdr WriteReadHeader, data []byte) *WriteReadBuilder {
	b.set(Read, hdr, data)
	return b
}

func (b *WriteReadBuilder) set(t WriteReadType, hdr WriteReadHeader, data []byte) {
	b.bwr = WriteReadProtocol{
		BwrType:       t,
		WriteSize:     hdr.WriteSize,
		WriteConsumed: hdr.WriteConsumed,
		WriteBuffer:   hdr.WriteBuffer,
		ReadSize:      hdr.ReadSize,
		ReadConsumed:  hdr.ReadConsumed,
		ReadBuffer:    hdr.ReadBuffer,
		Data:          data,
	}
	b.seen = true
}

func (b *WriteReadBuilder) Transaction(txn *TransactionProtocol) *WriteReadBuilder {
	b.txn = txn
	return b
}

// Build returns nil when no buffer was recorded.
func (b *WriteReadBuilder) Build() *WriteReadProtocol {
	if !b.seen {
		return nil
	}
	bwr := b.bwr
	if b.txn != nil {
		bwr.BwrType = bwr.BwrType.WithTransaction()
		bwr.Transaction = b.txn
	}
	return &bwr
}

// TransactionBuilder attaches target process details to a transaction.
type TransactionBuilder struct {
	txn  TransactionProtocol
	seen bool
}

func (b *TransactionBuilder) Transaction(t Transaction, targetComm, targetCmdline string) *TransactionBuilder {
	b.txn = TransactionProtocol{
		Transaction:   t,
		TargetComm:    commBytes(targetComm),
		TargetCmdline: []byte(targetCmdline),
	}
	b.seen = true
	return b
}

func (b *TransactionBuilder) Build() *TransactionProtocol {
	if !b.seen {
		return nil
	}
	txn := b.txn
	return &txn
}
