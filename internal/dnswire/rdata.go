package dnswire

import (
	"encoding/binary"
	"fmt"

	"github.com/dnsscience/resolve/internal/dnsname"
)

// SRVData is the decoded RDATA of an SRV record (RFC 2782).
type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

// DecodeSRV decodes a record's RDATA as SRV record data (RFC 2782). offset
// is the ResourceRecord's RDOffset — the byte position of rdata within
// outerMsg — needed because the SRV target name can carry a compression
// pointer back into the rest of the message, and rdata is usually not the
// tail of outerMsg (later records and sections follow it), so its offset
// cannot be derived from lengths alone.
func DecodeSRV(outerMsg []byte, offset int, rdata []byte) (SRVData, error) {
	if len(rdata) < 6 {
		return SRVData{}, fmt.Errorf("%w: srv rdata too short", ErrProtocol)
	}
	if offset < 0 || offset+6 > len(outerMsg) {
		return SRVData{}, fmt.Errorf("%w: srv rdata offset out of range", ErrProtocol)
	}

	d := SRVData{
		Priority: binary.BigEndian.Uint16(rdata[0:2]),
		Weight:   binary.BigEndian.Uint16(rdata[2:4]),
		Port:     binary.BigEndian.Uint16(rdata[4:6]),
	}

	target, _, err := dnsname.ReadName(outerMsg, offset+6)
	if err != nil {
		return SRVData{}, fmt.Errorf("%w: srv target: %v", ErrProtocol, err)
	}
	d.Target = target
	return d, nil
}

// SOAData is the decoded RDATA of an SOA record (RFC 1035 section 3.3.13).
type SOAData struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// DecodeSOA decodes a record's RDATA as SOA record data (RFC 1035 section
// 3.3.13). offset is the ResourceRecord's RDOffset, under the same
// rationale as DecodeSRV.
func DecodeSOA(outerMsg []byte, offset int) (SOAData, error) {
	if offset < 0 || offset > len(outerMsg) {
		return SOAData{}, fmt.Errorf("%w: soa rdata offset out of range", ErrProtocol)
	}

	mname, consumed, err := dnsname.ReadName(outerMsg, offset)
	if err != nil {
		return SOAData{}, fmt.Errorf("%w: soa mname: %v", ErrProtocol, err)
	}
	pos := offset + consumed

	rname, consumed, err := dnsname.ReadName(outerMsg, pos)
	if err != nil {
		return SOAData{}, fmt.Errorf("%w: soa rname: %v", ErrProtocol, err)
	}
	pos += consumed

	if pos+20 > len(outerMsg) {
		return SOAData{}, fmt.Errorf("%w: soa trailer truncated", ErrProtocol)
	}

	return SOAData{
		MName:   mname,
		RName:   rname,
		Serial:  binary.BigEndian.Uint32(outerMsg[pos : pos+4]),
		Refresh: binary.BigEndian.Uint32(outerMsg[pos+4 : pos+8]),
		Retry:   binary.BigEndian.Uint32(outerMsg[pos+8 : pos+12]),
		Expire:  binary.BigEndian.Uint32(outerMsg[pos+12 : pos+16]),
		Minimum: binary.BigEndian.Uint32(outerMsg[pos+16 : pos+20]),
	}, nil
}
