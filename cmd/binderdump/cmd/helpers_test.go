package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ssargent/binderdump/pkg/binder"
	"github.com/ssargent/binderdump/pkg/capture"
	"github.com/ssargent/binderdump/pkg/codec"
	"github.com/ssargent/binderdump/pkg/di"
)

type header struct {
	Kind      capture.EventKind
	PID       int32
	TID       int32
	Padding   uint32
	Timestamp uint64
}

type ioctlPayload struct {
	Fd   int32
	Comm [16]uint8
	UID  uint32
	GID  uint32
	Cmd  binder.Ioctl
	Arg  uint64
}

func sample(t *testing.T, kind capture.EventKind, ts uint64, payload any) []byte {
	t.Helper()
	out, err := codec.Marshal(header{Kind: kind, PID: 100, TID: 101, Timestamp: ts})
	require.NoError(t, err)
	data, err := codec.Marshal(payload)
	require.NoError(t, err)
	return append(out, data...)
}

// versionCalls returns n BINDER_VERSION ioctls on fd 5 of thread 101.
func versionCalls(t *testing.T, n int) [][]byte {
	var comm [16]uint8
	copy(comm[:], "binder:100_2")
	var samples [][]byte
	for i := 0; i < n; i++ {
		ts := uint64(10 * (i + 1))
		samples = append(samples,
			sample(t, capture.KindIoctl, ts, ioctlPayload{Fd: 5, Comm: comm, Cmd: binder.Version}),
			sample(t, capture.KindIoctlDone, ts+1, int32(0)),
		)
	}
	return samples
}

type fakeSources struct {
	samples [][]byte
	di.SourceFactory
}

func (f fakeSources) Live(capture.EBPFConfig) (capture.Source, error) {
	if f.samples == nil {
		return nil, errors.New("no tracepoints")
	}
	return capture.NewSliceSource(f.samples...), nil
}

type fakeResolvers struct{}

func (fakeResolvers) Resolver(string) (capture.Resolver, error) {
	return fakeResolver{}, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(pid, tid int32) (*capture.ProcessInfo, error) {
	return &capture.ProcessInfo{
		Cmdline: "system_server",
		Comm:    "binder:100_2",
		Fds:     map[binder.Interface]int32{binder.HwBinder: 5},
	}, nil
}

type fakeProps map[string]string

func (f fakeProps) Get(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("not set")
	}
	return v, nil
}

// testContainer replaces the kernel and device facing factories and
// restores the previous container when the test ends.
func testContainer(t *testing.T, samples [][]byte) {
	t.Helper()
	prev := container
	c := di.NewContainer()
	c.SetSourceFactory(fakeSources{samples: samples, SourceFactory: c.GetSourceFactory()})
	c.SetResolverFactory(fakeResolvers{})
	c.SetProperties(fakeProps{"ro.product.model": "Pixel 8", "ro.build.version.release": "15"})
	c.SetLoggerFactory(func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil })
	SetContainer(c)
	t.Cleanup(func() { SetContainer(prev) })
}
