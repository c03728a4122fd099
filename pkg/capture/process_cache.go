package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/procfs"

	"github.com/ssargent/binderdump/pkg/binder"
)

// ErrNoBinderFds is returned for threads without an open binder device.
var ErrNoBinderFds = errors.New("capture: thread has no open binder fds")

// DefaultProcessCacheSize bounds the number of cached threads.
const DefaultProcessCacheSize = 4096

// ProcessInfo is what procfs tells about a thread that talks binder.
type ProcessInfo struct {
	Cmdline string
	Comm    string
	// Fds maps each binder device to the fd it is open on.
	Fds map[binder.Interface]int32
}

// Interface returns the binder device fd is open on.
func (p *ProcessInfo) Interface(fd int32) (binder.Interface, bool) {
	for iface, f := range p.Fds {
		if f == fd {
			return iface, true
		}
	}
	return 0, false
}

// Resolver looks up a thread.
type Resolver interface {
	Resolve(pid, tid int32) (*ProcessInfo, error)
}

type processKey struct {
	pid int32
	tid int32
}

// ProcessCache remembers threads by (pid, tid). An entry is resolved again
// when the caller saw a different comm, which happens after exec.
type ProcessCache struct {
	resolver Resolver
	mu       sync.Mutex
	entries  *lru.Cache[processKey, *ProcessInfo]
}

func NewProcessCache(resolver Resolver, size int) (*ProcessCache, error) {
	if size <= 0 {
		size = DefaultProcessCacheSize
	}
	entries, err := lru.New[processKey, *ProcessInfo](size)
	if err != nil {
		return nil, err
	}
	return &ProcessCache{resolver: resolver, entries: entries}, nil
}

// Get returns the cached thread, resolving it on a miss. comm may be empty
// when the caller does not know it.
func (c *ProcessCache) Get(pid, tid int32, comm string) (*ProcessInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := processKey{pid: pid, tid: tid}
	if info, ok := c.entries.Get(key); ok && (comm == "" || comm == info.Comm) {
		return info, nil
	}
	info, err := c.resolver.Resolve(pid, tid)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, info)
	return info, nil
}

// Peek returns a cached thread without resolving it.
func (c *ProcessCache) Peek(pid, tid int32) (*ProcessInfo, bool) {
	return c.entries.Peek(processKey{pid: pid, tid: tid})
}

// Invalidate drops the thread and returns what was cached for it.
func (c *ProcessCache) Invalidate(pid, tid int32) (*ProcessInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := processKey{pid: pid, tid: tid}
	info, ok := c.entries.Peek(key)
	if ok {
		c.entries.Remove(key)
	}
	return info, ok
}

// Len returns the number of cached threads.
func (c *ProcessCache) Len() int {
	return c.entries.Len()
}

// ProcfsResolver reads threads from a proc filesystem.
type ProcfsResolver struct {
	root string
	fs   procfs.FS
}

func NewProcfsResolver(root string) (*ProcfsResolver, error) {
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, err
	}
	return &ProcfsResolver{root: root, fs: fs}, nil
}

// Resolve reads the command line, comm and binder fds of tid.
func (r *ProcfsResolver) Resolve(pid, tid int32) (*ProcessInfo, error) {
	proc, err := r.fs.Proc(int(tid))
	if err != nil {
		return nil, err
	}
	cmdline, err := proc.CmdLine()
	if err != nil {
		return nil, fmt.Errorf("cmdline of %d: %w", tid, err)
	}
	comm, err := proc.Comm()
	if err != nil {
		return nil, fmt.Errorf("comm of %d: %w", tid, err)
	}
	fds, err := proc.FileDescriptors()
	if err != nil {
		return nil, fmt.Errorf("fds of %d: %w", tid, err)
	}

	info := &ProcessInfo{
		Comm: comm,
		Fds:  make(map[binder.Interface]int32),
	}
	if len(cmdline) > 0 {
		info.Cmdline = cmdline[0]
	}

	fdDir := filepath.Join(r.root, strconv.Itoa(int(tid)), "fd")
	for _, fd := range fds {
		target, err := os.Readlink(filepath.Join(fdDir, strconv.FormatUint(uint64(fd), 10)))
		if err != nil {
			// closed since the listing
			continue
		}
		if iface, ok := binder.InterfaceFromPath(target); ok {
			info.Fds[iface] = int32(fd)
		}
		if len(info.Fds) == len(binder.Interfaces) {
			break
		}
	}
	if len(info.Fds) == 0 {
		return nil, fmt.Errorf("%w: pid %d tid %d", ErrNoBinderFds, pid, tid)
	}
	return info, nil
}
