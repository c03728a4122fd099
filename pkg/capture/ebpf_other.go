//go:build !linux

package capture

import (
	"errors"
)

// ErrUnsupportedPlatform is returned by OpenEBPF off linux.
var ErrUnsupportedPlatform = errors.New("capture: ebpf capture requires linux")

// EBPFSource is unavailable on this platform.
type EBPFSource struct{}

func OpenEBPF(EBPFConfig) (*EBPFSource, error) {
	return nil, ErrUnsupportedPlatform
}

func (*EBPFSource) Samples() <-chan []byte { return nil }
func (*EBPFSource) Close() error           { return nil }
