// Package pcapng writes aggregated binder events as pcapng packets that
// Wireshark hands to the android_binderdump dissector, and reads them back.
package pcapng

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Application is written to the section header.
const Application = "binderdump (version 0.1.0)"

// CaptureInfo describes the device a capture was taken on.
type CaptureInfo struct {
	SessionID     ksuid.KSUID
	Model         string
	OS            string
	Fingerprint   string
	KernelVersion string
	Application   string
	// Timeshift converts CLOCK_BOOTTIME event timestamps to wall time.
	Timeshift time.Duration
}

// Properties reads Android system properties.
type Properties interface {
	Get(ctx context.Context, name string) (string, error)
}

// Getprop runs the getprop tool.
type Getprop struct{}

func (Getprop) Get(ctx context.Context, name string) (string, error) {
	out, err := exec.CommandContext(ctx, "getprop", name).Output()
	if err != nil {
		return "", fmt.Errorf("getprop %s: %w", name, err)
	}
	return string(bytes.TrimSpace(out)), nil
}

// NewCaptureInfo collects the section header details. Properties that
// cannot be read are left empty so captures also work off device.
func NewCaptureInfo(ctx context.Context, props Properties, logger *zap.Logger) (CaptureInfo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	get := func(name string) string {
		v, err := props.Get(ctx, name)
		if err != nil {
			logger.Warn("failed to read system property", zap.String("property", name), zap.Error(err))
		}
		return v
	}

	info := CaptureInfo{
		SessionID:   ksuid.New(),
		Model:       get("ro.product.model"),
		Fingerprint: get("ro.build.fingerprint"),
		Application: Application,
	}
	if release := get("ro.build.version.release"); release != "" {
		info.OS = "Android " + release
	}

	var err error
	if info.KernelVersion, err = kernelVersion(); err != nil {
		return CaptureInfo{}, fmt.Errorf("failed to read kernel version: %w", err)
	}
	if info.Timeshift, err = bootTimeshift(); err != nil {
		return CaptureInfo{}, fmt.Errorf("failed to compute clock shift: %w", err)
	}
	return info, nil
}

// comment joins the details that have no section header option of their
// own.
func (c CaptureInfo) comment() string {
	var parts []string
	for _, s := range []string{c.Fingerprint, c.KernelVersion, "session " + c.SessionID.String()} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
