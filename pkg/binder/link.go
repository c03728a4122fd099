package binder

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Exported PDU tags, see wireshark's wsutil/exported_pdu_tlvs.h.
const (
	pduTagEndOfOpt      = 0
	pduTagDissectorName = 12
)

// DissectorName is the name the exported PDU header hands the payload to.
const DissectorName = "android_binderdump"

// ErrBadLinkHeader is returned when a packet does not start with a valid
// exported PDU header.
var ErrBadLinkHeader = errors.New("binder: malformed exported pdu header")

var linkHeader = buildLinkHeader(DissectorName)

func buildLinkHeader(name string) []byte {
	padded := (len(name) + 3) &^ 3
	hdr := make([]byte, 4+padded+4)
	binary.BigEndian.PutUint16(hdr[0:], pduTagDissectorName)
	binary.BigEndian.PutUint16(hdr[2:], uint16(padded))
	copy(hdr[4:], name)
	// END_OF_OPT with zero length is already zero.
	return hdr
}

// LinkHeader returns the WIRESHARK_UPPER_PDU header prepended to every
// packet: a dissector name tag followed by the end of options tag.
func LinkHeader() []byte {
	out := make([]byte, len(linkHeader))
	copy(out, linkHeader)
	return out
}

// ParseLinkHeader walks the exported PDU tags of a packet and returns the
// dissector name and the payload that follows the end of options tag.
func ParseLinkHeader(packet []byte) (string, []byte, error) {
	var dissector string
	pos := 0
	for {
		if len(packet)-pos < 4 {
			return "", nil, fmt.Errorf("%w: truncated tag at %d", ErrBadLinkHeader, pos)
		}
		tag := binary.BigEndian.Uint16(packet[pos:])
		length := int(binary.BigEndian.Uint16(packet[pos+2:]))
		pos += 4
		if tag == pduTagEndOfOpt {
			if dissector == "" {
				return "", nil, fmt.Errorf("%w: no dissector name", ErrBadLinkHeader)
			}
			return dissector, packet[pos:], nil
		}
		if len(packet)-pos < length {
			return "", nil, fmt.Errorf("%w: tag %d wants %d bytes", ErrBadLinkHeader, tag, length)
		}
		if tag == pduTagDissectorName {
			dissector = cString(packet[pos : pos+length])
		}
		pos += length
	}
}
