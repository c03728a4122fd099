//go:build linux

package pcapng

import (
	"time"

	"golang.org/x/sys/unix"
)

func kernelVersion() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Sysname[:]) + " " +
		unix.ByteSliceToString(uts.Release[:]) + " " +
		unix.ByteSliceToString(uts.Version[:]), nil
}

// bootTimeshift returns CLOCK_REALTIME minus CLOCK_BOOTTIME.
func bootTimeshift() (time.Duration, error) {
	var wall, boot unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &wall); err != nil {
		return 0, err
	}
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &boot); err != nil {
		return 0, err
	}
	return time.Duration(wall.Nano() - boot.Nano()), nil
}
