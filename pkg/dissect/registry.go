// Package dissect turns a decoded binderdump packet and its offset tree into
// a tree of named fields, the way a packet analyzer shows it.
package dissect

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ssargent/binderdump/pkg/binder"
	"github.com/ssargent/binderdump/pkg/codec"
)

const (
	ProtocolName   = "Binderdump"
	ProtocolAbbrev = "binderdump"

	// CommandsAbbrev and ReturnsAbbrev prefix the fields of the BC_ and BR_
	// entries found in the write-read buffer.
	CommandsAbbrev = ProtocolAbbrev + ".ioctl_data.bwr.commands"
	ReturnsAbbrev  = ProtocolAbbrev + ".ioctl_data.bwr.returns"

	dataAbbrev   = ProtocolAbbrev + ".ioctl_data.bwr.data"
	bwrTypeField = "bwr_type"
)

// Registry holds the header fields of the protocol keyed by abbreviation.
type Registry struct {
	fields   []codec.FieldInfo
	byAbbrev map[string]int
}

// NewRegistry describes binder.EventProtocol and every BC_/BR_ payload.
func NewRegistry() (*Registry, error) {
	r := &Registry{byAbbrev: make(map[string]int)}

	info, err := codec.Describe(binder.EventProtocol{}, ProtocolName, ProtocolAbbrev)
	if err != nil {
		return nil, fmt.Errorf("failed to describe event protocol: %w", err)
	}
	r.add(info...)

	r.add(
		codec.FieldInfo{Name: "Commands", Abbrev: CommandsAbbrev, Type: codec.FtNone},
		codec.FieldInfo{
			Name:    "BC",
			Abbrev:  CommandsAbbrev + ".bc",
			Type:    codec.FtU32,
			Display: codec.DisplayHex,
			Strings: binder.Command(0).Strings(),
		},
		codec.FieldInfo{Name: "Returns", Abbrev: ReturnsAbbrev, Type: codec.FtNone},
		codec.FieldInfo{
			Name:    "BR",
			Abbrev:  ReturnsAbbrev + ".br",
			Type:    codec.FtU32,
			Display: codec.DisplayHex,
			Strings: binder.Return(0).Strings(),
		},
	)
	if err := r.addPayloads(CommandsAbbrev, binder.CommandPayloads()); err != nil {
		return nil, err
	}
	if err := r.addPayloads(ReturnsAbbrev, binder.ReturnPayloads()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) add(fields ...codec.FieldInfo) {
	for _, f := range fields {
		if _, ok := r.byAbbrev[f.Abbrev]; ok {
			continue
		}
		r.byAbbrev[f.Abbrev] = len(r.fields)
		r.fields = append(r.fields, f)
	}
}

func (r *Registry) addPayloads(prefix string, payloads map[string]any) error {
	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info, err := codec.Describe(payloads[name], name, prefix+"."+name)
		if err != nil {
			return fmt.Errorf("failed to describe %s payload: %w", name, err)
		}
		// payloads are subtrees, not protocols of their own
		info[0].Type = codec.FtNone
		r.add(info...)
	}
	return nil
}

// Lookup returns the field registered under abbrev.
func (r *Registry) Lookup(abbrev string) (codec.FieldInfo, bool) {
	i, ok := r.byAbbrev[abbrev]
	if !ok {
		return codec.FieldInfo{}, false
	}
	return r.fields[i], true
}

// Fields returns all fields in registration order.
func (r *Registry) Fields() []codec.FieldInfo {
	out := make([]codec.FieldInfo, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r *Registry) Len() int {
	return len(r.fields)
}

var defaultRegistry = sync.OnceValues(NewRegistry)

// Default returns a process wide registry.
func Default() (*Registry, error) {
	return defaultRegistry()
}
