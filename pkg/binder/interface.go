package binder

import (
	"fmt"

	"github.com/ssargent/binderdump/pkg/codec"
)

// Interface is the binder device a call was made on. It doubles as the
// pcapng interface index.
type Interface uint8

const (
	Binder Interface = iota
	HwBinder
	VndBinder
)

// Interfaces lists every device in interface index order.
var Interfaces = []Interface{Binder, HwBinder, VndBinder}

var interfacePaths = map[Interface]string{
	Binder:    "/dev/binder",
	HwBinder:  "/dev/hwbinder",
	VndBinder: "/dev/vndbinder",
}

var binderfsPaths = map[string]Interface{
	"/dev/binderfs/binder":    Binder,
	"/dev/binderfs/hwbinder":  HwBinder,
	"/dev/binderfs/vndbinder": VndBinder,
}

func (i Interface) Valid() bool {
	return i <= VndBinder
}

func (i Interface) String() string {
	switch i {
	case Binder:
		return "BINDER"
	case HwBinder:
		return "HWBINDER"
	case VndBinder:
		return "VNDBINDER"
	}
	return fmt.Sprintf("Interface(%d)", uint8(i))
}

func (Interface) Strings() []codec.ValueString {
	return []codec.ValueString{
		{Value: uint64(Binder), String: Binder.String()},
		{Value: uint64(HwBinder), String: HwBinder.String()},
		{Value: uint64(VndBinder), String: VndBinder.String()},
	}
}

// Path returns the /dev node of the interface.
func (i Interface) Path() string {
	return interfacePaths[i]
}

// InterfaceFromPath maps an fd target to its interface. Both the legacy
// /dev nodes and binderfs mounts are recognized.
func InterfaceFromPath(path string) (Interface, bool) {
	for iface, p := range interfacePaths {
		if p == path {
			return iface, true
		}
	}
	iface, ok := binderfsPaths[path]
	return iface, ok
}
