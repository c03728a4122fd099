package binder

// Payload layouts of the BC_/BR_ entries, as defined by the binder uapi
// header for 64-bit userspace. Each one is decodable with pkg/codec.

// TransactionData mirrors struct binder_transaction_data.
type TransactionData struct {
	Target      uint64 `wire:",hex"`
	Cookie      uint64 `wire:",hex"`
	Code        uint32 `wire:",hex"`
	Flags       uint32 `wire:",hex"`
	SenderPID   int32
	SenderEUID  uint32
	DataSize    uint64
	OffsetsSize uint64
	Buffer      uint64 `wire:",hex"`
	Offsets     uint64 `wire:",hex"`
}

// TransactionDataSg mirrors struct binder_transaction_data_sg.
type TransactionDataSg struct {
	TransactionData TransactionData
	BuffersSize     uint64
}

// TransactionSecCtx mirrors struct binder_transaction_data_secctx.
type TransactionSecCtx struct {
	TransactionData TransactionData
	SecCtx          uint64 `wire:"secctx,hex"`
}

// RefTarget is the handle argument of BC_INCREFS and friends. Handle 0
// addresses the context manager.
type RefTarget struct {
	Target uint32
}

// PtrCookie mirrors struct binder_ptr_cookie.
type PtrCookie struct {
	Ptr    uint64 `wire:",hex"`
	Cookie uint64 `wire:",hex"`
}

// HandleCookie mirrors the packed struct binder_handle_cookie.
type HandleCookie struct {
	Handle uint32
	Cookie uint64 `wire:",hex"`
}

// PriDesc mirrors struct binder_pri_desc.
type PriDesc struct {
	Priority int32
	Desc     uint32
}

// PriPtrCookie mirrors struct binder_pri_ptr_cookie, including the
// alignment hole after Priority.
type PriPtrCookie struct {
	Priority int32
	Padding  uint32
	Ptr      uint64 `wire:",hex"`
	Cookie   uint64 `wire:",hex"`
}

type BufferPtr struct {
	DataPtr uint64 `wire:",hex"`
}

type Cookie struct {
	Cookie uint64 `wire:",hex"`
}

type Int32Value struct {
	Value int32
}

type payload struct {
	name string
	new  func() any
}

var (
	transactionPayload   = payload{"transaction", func() any { return new(TransactionData) }}
	transactionSgPayload = payload{"transaction_sg", func() any { return new(TransactionDataSg) }}
	refPayload           = payload{"ref", func() any { return new(RefTarget) }}
	ptrCookiePayload     = payload{"ptr_cookie", func() any { return new(PtrCookie) }}
	deathPayload         = payload{"death", func() any { return new(HandleCookie) }}
	cookiePayload        = payload{"cookie", func() any { return new(Cookie) }}
	int32Payload         = payload{"value", func() any { return new(Int32Value) }}
)

var commandPayloads = map[Command]payload{
	BCTransaction:              transactionPayload,
	BCReply:                    transactionPayload,
	BCAcquireResult:            int32Payload,
	BCFreeBuffer:               {"free_buffer", func() any { return new(BufferPtr) }},
	BCIncRefs:                  refPayload,
	BCAcquire:                  refPayload,
	BCRelease:                  refPayload,
	BCDecRefs:                  refPayload,
	BCIncRefsDone:              ptrCookiePayload,
	BCAcquireDone:              ptrCookiePayload,
	BCAttemptAcquire:           {"attempt_acquire", func() any { return new(PriDesc) }},
	BCRequestDeathNotification: deathPayload,
	BCClearDeathNotification:   deathPayload,
	BCDeadBinderDone:           cookiePayload,
	BCTransactionSg:            transactionSgPayload,
	BCReplySg:                  transactionSgPayload,
}

var returnPayloads = map[Return]payload{
	BRError:                      {"error", func() any { return new(Int32Value) }},
	BRTransactionSecCtx:          {"transaction_secctx", func() any { return new(TransactionSecCtx) }},
	BRTransaction:                transactionPayload,
	BRReply:                      transactionPayload,
	BRAcquireResult:              int32Payload,
	BRIncRefs:                    ptrCookiePayload,
	BRAcquire:                    ptrCookiePayload,
	BRRelease:                    ptrCookiePayload,
	BRDecRefs:                    ptrCookiePayload,
	BRAttemptAcquire:             {"attempt_acquire", func() any { return new(PriPtrCookie) }},
	BRDeadBinder:                 cookiePayload,
	BRClearDeathNotificationDone: cookiePayload,
}

// CommandPayloads returns one zero value per distinct BC_ payload name.
func CommandPayloads() map[string]any {
	out := make(map[string]any)
	for _, p := range commandPayloads {
		out[p.name] = p.new()
	}
	return out
}

// ReturnPayloads returns one zero value per distinct BR_ payload name.
func ReturnPayloads() map[string]any {
	out := make(map[string]any)
	for _, p := range returnPayloads {
		out[p.name] = p.new()
	}
	return out
}
