package storage

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/binderdump/pkg/codec"
)

// SessionState is the lifecycle state of a capture session.
type SessionState uint8

const (
	Running SessionState = iota
	Finished
	Failed
)

var sessionStateNames = map[SessionState]string{
	Running:  "running",
	Finished: "finished",
	Failed:   "failed",
}

func (s SessionState) Valid() bool {
	_, ok := sessionStateNames[s]
	return ok
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SessionState(%d)", uint8(s))
}

func (SessionState) Strings() []codec.ValueString {
	return []codec.ValueString{
		{Value: uint64(Running), String: "running"},
		{Value: uint64(Finished), String: "finished"},
		{Value: uint64(Failed), String: "failed"},
	}
}

// Session describes one capture run. The ID is the catalog key and is not
// part of the encoded value.
type Session struct {
	ID ksuid.KSUID `wire:"-"`

	StartedAt  int64
	FinishedAt int64
	State      SessionState
	// Output is the pcapng file, Spool the raw sample spool if any.
	Output string
	Spool  string
	Replay bool

	Model         string
	OS            string
	KernelVersion string
	Timeshift     int64

	Events  uint64
	Packets uint64
	Bytes   uint64
	Dropped uint64
	Error   string
}

func (s *Session) Started() time.Time {
	return time.Unix(0, s.StartedAt)
}

// Duration returns how long the session ran, or has been running.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt == 0 {
		return time.Since(s.Started())
	}
	return time.Duration(s.FinishedAt - s.StartedAt)
}

// Finish marks the session done at t, as failed when err is set.
func (s *Session) Finish(t time.Time, err error) {
	s.FinishedAt = t.UnixNano()
	s.State = Finished
	if err != nil {
		s.State = Failed
		s.Error = err.Error()
	}
}
