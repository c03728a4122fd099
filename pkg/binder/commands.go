package binder

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/ssargent/binderdump/pkg/codec"
)

var (
	// ErrUnknownCode is returned for a BC_/BR_ code outside the driver protocol.
	ErrUnknownCode = errors.New("binder: unknown protocol code")
	// ErrShortBuffer is returned when a command stream ends inside an entry.
	ErrShortBuffer = errors.New("binder: command stream truncated")
)

// Command is a BC_ code written by userspace in the write buffer.
type Command uint32

const (
	BCTransaction              Command = iocW | sizeTransactionData<<iocSizeShift | 'c'<<iocTypeShift | 0
	BCReply                    Command = iocW | sizeTransactionData<<iocSizeShift | 'c'<<iocTypeShift | 1
	BCAcquireResult            Command = iocW | sizeInt32<<iocSizeShift | 'c'<<iocTypeShift | 2
	BCFreeBuffer               Command = iocW | sizeUintptr<<iocSizeShift | 'c'<<iocTypeShift | 3
	BCIncRefs                  Command = iocW | sizeInt32<<iocSizeShift | 'c'<<iocTypeShift | 4
	BCAcquire                  Command = iocW | sizeInt32<<iocSizeShift | 'c'<<iocTypeShift | 5
	BCRelease                  Command = iocW | sizeInt32<<iocSizeShift | 'c'<<iocTypeShift | 6
	BCDecRefs                  Command = iocW | sizeInt32<<iocSizeShift | 'c'<<iocTypeShift | 7
	BCIncRefsDone              Command = iocW | sizePtrCookie<<iocSizeShift | 'c'<<iocTypeShift | 8
	BCAcquireDone              Command = iocW | sizePtrCookie<<iocSizeShift | 'c'<<iocTypeShift | 9
	BCAttemptAcquire           Command = iocW | sizePriDesc<<iocSizeShift | 'c'<<iocTypeShift | 10
	BCRegisterLooper           Command = 'c'<<iocTypeShift | 11
	BCEnterLooper              Command = 'c'<<iocTypeShift | 12
	BCExitLooper               Command = 'c'<<iocTypeShift | 13
	BCRequestDeathNotification Command = iocW | sizeHandleCookie<<iocSizeShift | 'c'<<iocTypeShift | 14
	BCClearDeathNotification   Command = iocW | sizeHandleCookie<<iocSizeShift | 'c'<<iocTypeShift | 15
	BCDeadBinderDone           Command = iocW | sizeUintptr<<iocSizeShift | 'c'<<iocTypeShift | 16
	BCTransactionSg            Command = iocW | sizeTransactionDataSg<<iocSizeShift | 'c'<<iocTypeShift | 17
	BCReplySg                  Command = iocW | sizeTransactionDataSg<<iocSizeShift | 'c'<<iocTypeShift | 18
)

var commandNames = map[Command]string{
	BCTransaction:              "BC_TRANSACTION",
	BCReply:                    "BC_REPLY",
	BCAcquireResult:            "BC_ACQUIRE_RESULT",
	BCFreeBuffer:               "BC_FREE_BUFFER",
	BCIncRefs:                  "BC_INCREFS",
	BCAcquire:                  "BC_ACQUIRE",
	BCRelease:                  "BC_RELEASE",
	BCDecRefs:                  "BC_DECREFS",
	BCIncRefsDone:              "BC_INCREFS_DONE",
	BCAcquireDone:              "BC_ACQUIRE_DONE",
	BCAttemptAcquire:           "BC_ATTEMPT_ACQUIRE",
	BCRegisterLooper:           "BC_REGISTER_LOOPER",
	BCEnterLooper:              "BC_ENTER_LOOPER",
	BCExitLooper:               "BC_EXIT_LOOPER",
	BCRequestDeathNotification: "BC_REQUEST_DEATH_NOTIFICATION",
	BCClearDeathNotification:   "BC_CLEAR_DEATH_NOTIFICATION",
	BCDeadBinderDone:           "BC_DEAD_BINDER_DONE",
	BCTransactionSg:            "BC_TRANSACTION_SG",
	BCReplySg:                  "BC_REPLY_SG",
}

func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%#x)", uint32(c))
}

func (Command) Strings() []codec.ValueString {
	return valueStrings(commandNames)
}

// PayloadSize is the number of bytes following the code in the stream.
func (c Command) PayloadSize() int {
	return iocSize(uint32(c))
}

// IsTransaction reports whether the command starts or answers a transaction.
func (c Command) IsTransaction() bool {
	switch c {
	case BCTransaction, BCReply, BCTransactionSg, BCReplySg:
		return true
	}
	return false
}

// Payload returns the payload name and a pointer to a zero payload value
// for c, or false when the command carries no structured payload.
func (c Command) Payload() (string, any, bool) {
	p, ok := commandPayloads[c]
	if !ok {
		return "", nil, false
	}
	return p.name, p.new(), true
}

// Return is a BR_ code written by the driver in the read buffer.
type Return uint32

const (
	BRError                      Return = iocR | sizeInt32<<iocSizeShift | 'r'<<iocTypeShift | 0
	BROk                         Return = 'r'<<iocTypeShift | 1
	BRTransactionSecCtx          Return = iocR | sizeTransactionSecCtx<<iocSizeShift | 'r'<<iocTypeShift | 2
	BRTransaction                Return = iocR | sizeTransactionData<<iocSizeShift | 'r'<<iocTypeShift | 2
	BRReply                      Return = iocR | sizeTransactionData<<iocSizeShift | 'r'<<iocTypeShift | 3
	BRAcquireResult              Return = iocR | sizeInt32<<iocSizeShift | 'r'<<iocTypeShift | 4
	BRDeadReply                  Return = 'r'<<iocTypeShift | 5
	BRTransactionComplete        Return = 'r'<<iocTypeShift | 6
	BRIncRefs                    Return = iocR | sizePtrCookie<<iocSizeShift | 'r'<<iocTypeShift | 7
	BRAcquire                    Return = iocR | sizePtrCookie<<iocSizeShift | 'r'<<iocTypeShift | 8
	BRRelease                    Return = iocR | sizePtrCookie<<iocSizeShift | 'r'<<iocTypeShift | 9
	BRDecRefs                    Return = iocR | sizePtrCookie<<iocSizeShift | 'r'<<iocTypeShift | 10
	BRAttemptAcquire             Return = iocR | sizePriPtrCookie<<iocSizeShift | 'r'<<iocTypeShift | 11
	BRNoop                       Return = 'r'<<iocTypeShift | 12
	BRSpawnLooper                Return = 'r'<<iocTypeShift | 13
	BRFinished                   Return = 'r'<<iocTypeShift | 14
	BRDeadBinder                 Return = iocR | sizeUintptr<<iocSizeShift | 'r'<<iocTypeShift | 15
	BRClearDeathNotificationDone Return = iocR | sizeUintptr<<iocSizeShift | 'r'<<iocTypeShift | 16
	BRFailedReply                Return = 'r'<<iocTypeShift | 17
	BRFrozenReply                Return = 'r'<<iocTypeShift | 18
	BROnewaySpamSuspect          Return = 'r'<<iocTypeShift | 19
)

var returnNames = map[Return]string{
	BRError:                      "BR_ERROR",
	BROk:                         "BR_OK",
	BRTransactionSecCtx:          "BR_TRANSACTION_SEC_CTX",
	BRTransaction:                "BR_TRANSACTION",
	BRReply:                      "BR_REPLY",
	BRAcquireResult:              "BR_ACQUIRE_RESULT",
	BRDeadReply:                  "BR_DEAD_REPLY",
	BRTransactionComplete:        "BR_TRANSACTION_COMPLETE",
	BRIncRefs:                    "BR_INCREFS",
	BRAcquire:                    "BR_ACQUIRE",
	BRRelease:                    "BR_RELEASE",
	BRDecRefs:                    "BR_DECREFS",
	BRAttemptAcquire:             "BR_ATTEMPT_ACQUIRE",
	BRNoop:                       "BR_NOOP",
	BRSpawnLooper:                "BR_SPAWN_LOOPER",
	BRFinished:                   "BR_FINISHED",
	BRDeadBinder:                 "BR_DEAD_BINDER",
	BRClearDeathNotificationDone: "BR_CLEAR_DEATH_NOTIFICATION_DONE",
	BRFailedReply:                "BR_FAILED_REPLY",
	BRFrozenReply:                "BR_FROZEN_REPLY",
	BROnewaySpamSuspect:          "BR_ONEWAY_SPAM_SUSPECT",
}

func (r Return) Valid() bool {
	_, ok := returnNames[r]
	return ok
}

func (r Return) String() string {
	if name, ok := returnNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Return(%#x)", uint32(r))
}

func (Return) Strings() []codec.ValueString {
	return valueStrings(returnNames)
}

func (r Return) PayloadSize() int {
	return iocSize(uint32(r))
}

// IsTransaction reports whether the return delivers a transaction or reply.
func (r Return) IsTransaction() bool {
	switch r {
	case BRTransactionSecCtx, BRTransaction, BRReply:
		return true
	}
	return false
}

func (r Return) Payload() (string, any, bool) {
	p, ok := returnPayloads[r]
	if !ok {
		return "", nil, false
	}
	return p.name, p.new(), true
}

// Op locates one entry of a command or return stream. Offset is the
// position of the 4 byte code; Size covers the code and its payload.
type Op struct {
	Code   uint32
	Offset int
	Size   int
}

// PayloadOffset returns the position of the first payload byte.
func (o Op) PayloadOffset() int {
	return o.Offset + 4
}

// ParseCommands splits a write buffer into BC_ entries. Entries parsed
// before a failure are returned along with the error.
func ParseCommands(data []byte) ([]Op, error) {
	return parseStream(data, func(code uint32) (int, bool) {
		c := Command(code)
		return c.PayloadSize(), c.Valid()
	})
}

// ParseReturns splits a read buffer into BR_ entries.
func ParseReturns(data []byte) ([]Op, error) {
	return parseStream(data, func(code uint32) (int, bool) {
		r := Return(code)
		return r.PayloadSize(), r.Valid()
	})
}

func parseStream(data []byte, lookup func(code uint32) (int, bool)) ([]Op, error) {
	var ops []Op
	pos := 0
	for pos < len(data) {
		if len(data)-pos < 4 {
			return ops, fmt.Errorf("%w: %d trailing bytes at %d", ErrShortBuffer, len(data)-pos, pos)
		}
		code := binary.LittleEndian.Uint32(data[pos:])
		payload, ok := lookup(code)
		if !ok {
			return ops, fmt.Errorf("%w: %#x at %d", ErrUnknownCode, code, pos)
		}
		size := 4 + payload
		if len(data)-pos < size {
			return ops, fmt.Errorf("%w: %#x at %d needs %d bytes, %d left",
				ErrShortBuffer, code, pos, size, len(data)-pos)
		}
		ops = append(ops, Op{Code: code, Offset: pos, Size: size})
		pos += size
	}
	return ops, nil
}

// AnyTransaction reports whether a write buffer holds a transaction or
// reply command, which makes the ioctl block until the peer answers.
func AnyTransaction(data []byte) (bool, error) {
	ops, err := ParseCommands(data)
	for _, op := range ops {
		if Command(op.Code).IsTransaction() {
			return true, nil
		}
	}
	return false, err
}

func valueStrings[K ~uint8 | ~uint32](names map[K]string) []codec.ValueString {
	out := make([]codec.ValueString, 0, len(names))
	for v, s := range names {
		out = append(out, codec.ValueString{Value: uint64(v), String: s})
	}
	slices.SortFunc(out, func(a, b codec.ValueString) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}
