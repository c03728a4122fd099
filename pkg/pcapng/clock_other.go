//go:build !linux

package pcapng

import (
	"runtime"
	"time"
)

func kernelVersion() (string, error) {
	return runtime.GOOS, nil
}

// Without CLOCK_BOOTTIME timestamps are taken as wall time already.
func bootTimeshift() (time.Duration, error) {
	return 0, nil
}
