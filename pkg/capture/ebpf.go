package capture

import (
	"go.uber.org/zap"
)

// Defaults for the binder probe object.
const (
	DefaultRingBufferMap = "binder_events_buffer"
	DefaultChannelSize   = 4096
)

// EBPFConfig selects the probe object and the ring buffer map to read.
type EBPFConfig struct {
	ObjectPath    string
	RingBufferMap string
	ChannelSize   int
	Logger        *zap.Logger
}

var _ Source = (*EBPFSource)(nil)
