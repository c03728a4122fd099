package capture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/binderdump/pkg/binder"
)

type fakeResolver struct {
	comm  string
	calls int
	err   error
}

func (f *fakeResolver) Resolve(pid, tid int32) (*ProcessInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ProcessInfo{
		Cmdline: "/system/bin/app",
		Comm:    f.comm,
		Fds:     map[binder.Interface]int32{binder.Binder: 4},
	}, nil
}

func TestProcessCache_Get(t *testing.T) {
	resolver := &fakeResolver{comm: "app"}
	cache, err := NewProcessCache(resolver, 0)
	require.NoError(t, err)

	info, err := cache.Get(1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, "app", info.Comm)
	assert.Equal(t, 1, resolver.calls)

	_, err = cache.Get(1, 2, "app")
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls, "matching comm is served from cache")

	_, err = cache.Get(1, 2, "renamed")
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.calls, "a different comm resolves again")

	_, err = cache.Get(1, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 3, resolver.calls)
	assert.Equal(t, 2, cache.Len())
}

func TestProcessCache_Invalidate(t *testing.T) {
	cache, err := NewProcessCache(&fakeResolver{comm: "app"}, 8)
	require.NoError(t, err)

	_, ok := cache.Invalidate(1, 2)
	assert.False(t, ok)

	_, err = cache.Get(1, 2, "")
	require.NoError(t, err)
	_, ok = cache.Peek(1, 2)
	assert.True(t, ok)

	info, ok := cache.Invalidate(1, 2)
	require.True(t, ok)
	assert.Equal(t, "/system/bin/app", info.Cmdline)

	_, ok = cache.Peek(1, 2)
	assert.False(t, ok)
}

func TestProcessCache_ResolveError(t *testing.T) {
	boom := errors.New("gone")
	cache, err := NewProcessCache(&fakeResolver{err: boom}, 8)
	require.NoError(t, err)

	_, err = cache.Get(1, 2, "")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len())
}

func TestProcessCache_Evicts(t *testing.T) {
	cache, err := NewProcessCache(&fakeResolver{comm: "app"}, 2)
	require.NoError(t, err)
	for tid := int32(1); tid <= 3; tid++ {
		_, err := cache.Get(1, tid, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Peek(1, 1)
	assert.False(t, ok)
}

func TestProcessInfo_Interface(t *testing.T) {
	info := &ProcessInfo{Fds: map[binder.Interface]int32{binder.Binder: 4, binder.HwBinder: 7}}
	iface, ok := info.Interface(7)
	require.True(t, ok)
	assert.Equal(t, binder.HwBinder, iface)
	_, ok = info.Interface(5)
	assert.False(t, ok)
}

// fakeProc lays out /proc/<tid> with the given fd link targets.
func fakeProc(t *testing.T, tid string, cmdline, comm string, fds map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, tid)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fd"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0644))
	for fd, target := range fds {
		require.NoError(t, os.Symlink(target, filepath.Join(dir, "fd", fd)))
	}
	return root
}

func TestProcfsResolver(t *testing.T) {
	root := fakeProc(t, "42", "/system/bin/surfaceflinger\x00--flag\x00", "surfaceflinger", map[string]string{
		"0": "/dev/null",
		"5": "/dev/binderfs/binder",
		"9": "/dev/vndbinder",
	})
	resolver, err := NewProcfsResolver(root)
	require.NoError(t, err)

	info, err := resolver.Resolve(42, 42)
	require.NoError(t, err)
	assert.Equal(t, "/system/bin/surfaceflinger", info.Cmdline)
	assert.Equal(t, "surfaceflinger", info.Comm)
	assert.Equal(t, map[binder.Interface]int32{binder.Binder: 5, binder.VndBinder: 9}, info.Fds)
}

func TestProcfsResolver_NoBinderFds(t *testing.T) {
	root := fakeProc(t, "42", "sh\x00", "sh", map[string]string{"1": "/dev/null"})
	resolver, err := NewProcfsResolver(root)
	require.NoError(t, err)

	_, err = resolver.Resolve(42, 42)
	assert.ErrorIs(t, err, ErrNoBinderFds)

	_, err = resolver.Resolve(42, 43)
	assert.Error(t, err)
}
