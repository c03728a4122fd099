package pcapng

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/pcapgo"

	"github.com/ssargent/binderdump/pkg/binder"
	"github.com/ssargent/binderdump/pkg/codec"
)

// Packet is one packet of a binderdump capture with its exported PDU header
// already stripped.
type Packet struct {
	Timestamp time.Time
	Interface binder.Interface
	Dissector string
	// Data is the whole packet, Payload the part after the link header.
	Data    []byte
	Payload []byte
}

// Reader reads packets written by PacketGenerator.
type Reader struct {
	r *pcapgo.NgReader
}

func NewReader(r io.Reader) (*Reader, error) {
	ng, err := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return nil, err
	}
	if ng.LinkType() != LinkTypeUpperPDU {
		return nil, fmt.Errorf("pcapng: unexpected link type %s", ng.LinkType())
	}
	return &Reader{r: ng}, nil
}

// SectionInfo returns the section header of the capture.
func (r *Reader) SectionInfo() pcapgo.NgSectionInfo {
	return r.r.SectionInfo()
}

// Next returns the next packet or io.EOF.
func (r *Reader) Next() (Packet, error) {
	data, ci, err := r.r.ReadPacketData()
	if err != nil {
		return Packet{}, err
	}
	dissector, payload, err := binder.ParseLinkHeader(data)
	if err != nil {
		return Packet{}, err
	}
	return Packet{
		Timestamp: ci.Timestamp,
		Interface: binder.Interface(ci.InterfaceIndex),
		Dissector: dissector,
		Data:      data,
		Payload:   payload,
	}, nil
}

// Decode decodes the event of p together with its offset tree. Offsets are
// relative to the payload.
func (p Packet) Decode() (*binder.EventProtocol, codec.Layout, error) {
	var ev binder.EventProtocol
	layout, err := codec.UnmarshalWithOffsets(p.Payload, &ev)
	if err != nil {
		return nil, codec.Layout{}, err
	}
	return &ev, layout, nil
}
