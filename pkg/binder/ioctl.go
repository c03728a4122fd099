// Package binder models the Android Binder driver: the ioctl requests issued
// on /dev/binder, the BC_/BR_ command streams carried by BINDER_WRITE_READ
// and the records binderdump writes into each captured packet.
package binder

import (
	"fmt"

	"github.com/ssargent/binderdump/pkg/codec"
)

// _IOC encoding as used by asm-generic/ioctl.h
const (
	iocWrite = 1
	iocRead  = 2

	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
	iocSizeMask  = 0x3fff

	iocW  = iocWrite << iocDirShift
	iocR  = iocRead << iocDirShift
	iocWR = (iocRead | iocWrite) << iocDirShift
)

// iocSize extracts the argument size encoded in an ioctl style code.
func iocSize(code uint32) int {
	return int((code >> iocSizeShift) & iocSizeMask)
}

// Sizes of the kernel structures referenced by the request codes, on 64-bit
// kernels.
const (
	sizeWriteRead         = 48
	sizeVersion           = 4
	sizeNodeDebugInfo     = 24
	sizeNodeInfoForRef    = 24
	sizeFlatBinderObject  = 24
	sizeFreezeInfo        = 12
	sizeFrozenStatusInfo  = 12
	sizeTransactionData   = 64
	sizeTransactionDataSg = 72
	sizeTransactionSecCtx = 72
	sizePtrCookie         = 16
	sizeHandleCookie      = 12
	sizePriDesc           = 8
	sizePriPtrCookie      = 24
	sizeUintptr           = 8
	sizeInt32             = 4
	sizeInt64             = 8
)

// Ioctl is a binder ioctl request code.
type Ioctl uint32

const (
	WriteRead                 Ioctl = iocWR | sizeWriteRead<<iocSizeShift | 'b'<<iocTypeShift | 1
	SetIdleTimeout            Ioctl = iocW | sizeInt64<<iocSizeShift | 'b'<<iocTypeShift | 3
	SetMaxThreads             Ioctl = iocW | sizeInt32<<iocSizeShift | 'b'<<iocTypeShift | 5
	SetIdlePriority           Ioctl = iocW | sizeInt32<<iocSizeShift | 'b'<<iocTypeShift | 6
	SetContextMgr             Ioctl = iocW | sizeInt32<<iocSizeShift | 'b'<<iocTypeShift | 7
	ThreadExit                Ioctl = iocW | sizeInt32<<iocSizeShift | 'b'<<iocTypeShift | 8
	Version                   Ioctl = iocWR | sizeVersion<<iocSizeShift | 'b'<<iocTypeShift | 9
	GetNodeDebugInfo          Ioctl = iocWR | sizeNodeDebugInfo<<iocSizeShift | 'b'<<iocTypeShift | 11
	GetNodeInfoForRef         Ioctl = iocWR | sizeNodeInfoForRef<<iocSizeShift | 'b'<<iocTypeShift | 12
	SetContextMgrExt          Ioctl = iocW | sizeFlatBinderObject<<iocSizeShift | 'b'<<iocTypeShift | 13
	Freeze                    Ioctl = iocW | sizeFreezeInfo<<iocSizeShift | 'b'<<iocTypeShift | 14
	GetFrozenInfo             Ioctl = iocWR | sizeFrozenStatusInfo<<iocSizeShift | 'b'<<iocTypeShift | 15
	EnableOnewaySpamDetection Ioctl = iocW | sizeInt32<<iocSizeShift | 'b'<<iocTypeShift | 16
)

var ioctlNames = map[Ioctl]string{
	WriteRead:                 "BINDER_WRITE_READ",
	SetIdleTimeout:            "BINDER_SET_IDLE_TIMEOUT",
	SetMaxThreads:             "BINDER_SET_MAX_THREADS",
	SetIdlePriority:           "BINDER_SET_IDLE_PRIORITY",
	SetContextMgr:             "BINDER_SET_CONTEXT_MGR",
	ThreadExit:                "BINDER_THREAD_EXIT",
	Version:                   "BINDER_VERSION",
	GetNodeDebugInfo:          "BINDER_GET_NODE_DEBUG_INFO",
	GetNodeInfoForRef:         "BINDER_GET_NODE_INFO_FOR_REF",
	SetContextMgrExt:          "BINDER_SET_CONTEXT_MGR_EXT",
	Freeze:                    "BINDER_FREEZE",
	GetFrozenInfo:             "BINDER_GET_FROZEN_INFO",
	EnableOnewaySpamDetection: "BINDER_ENABLE_ONEWAY_SPAM_DETECTION",
}

// Valid reports whether i is a known binder request.
func (i Ioctl) Valid() bool {
	_, ok := ioctlNames[i]
	return ok
}

func (i Ioctl) String() string {
	if name, ok := ioctlNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Ioctl(%#x)", uint32(i))
}

// Strings lists every request for dissector value tables.
func (Ioctl) Strings() []codec.ValueString {
	return valueStrings(ioctlNames)
}
