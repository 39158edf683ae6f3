// Package answer turns a decoded DNS response (header plus its three
// record sections) into the library's typed result values, applying RFC
// 2308 negative-caching rules along the way. It is the last stage a
// response passes through before reaching a caller: everything here
// operates on already-decoded dnswire.ResourceRecord values, never on raw
// bytes.
package answer

import (
	"fmt"
	"net"
	"time"

	"github.com/dnsscience/resolve/internal/dnsname"
	"github.com/dnsscience/resolve/internal/dnswire"
)

// AddressResult is one resolved A or AAAA address.
type AddressResult struct {
	ExpiresAt time.Time
	Address   string
}

// ServiceResult is one resolved SRV record, with any addresses the server
// supplied for its target in the additional section already attached.
type ServiceResult struct {
	ExpiresAt time.Time
	Priority  uint16
	Weight    uint16
	Port      uint16
	Target    string
	Addresses []AddressResult
}

// TxtResult is one resolved TXT record. Data is the raw RDATA, copied out
// of the record's buffer; use GetText to split it into RFC 1035
// character-strings.
type TxtResult struct {
	TTL  uint32
	Data []byte
}

// GetText splits r.Data into its RFC 1035 character-strings: a repeated
// <u8 length><bytes> sequence running to the end of the buffer. A
// truncated trailing length byte is silently dropped — the record itself
// was already validated as decodable by the caller that built r.
func (r TxtResult) GetText() []string {
	var out []string
	data := r.Data
	for len(data) > 0 {
		n := int(data[0])
		data = data[1:]
		if n > len(data) {
			break
		}
		out = append(out, string(data[:n]))
		data = data[n:]
	}
	return out
}

// Response is the decoded shape of one DNS message, ready for processing:
// a header, the time the exchange that produced it started, and the three
// record sections. RData on every record still aliases the message buffer
// the caller decoded it from; that buffer is passed separately to the
// functions below as outerMsg since CNAME and SOA/SRV RDATA may carry
// compression pointers back into it.
type Response struct {
	Header      dnswire.Header
	StartedAt   time.Time
	Answers     []dnswire.ResourceRecord
	Authorities []dnswire.ResourceRecord
	Additionals []dnswire.ResourceRecord
}

// minSOATTL returns min(record TTL, SOA MINIMUM field) for the first
// decodable SOA record in rrs, per RFC 2308 sections 3-4: the
// negative-caching TTL is bounded by both the record's own TTL and the
// MINIMUM field inside its RDATA, whichever is smaller.
func minSOATTL(outerMsg []byte, rrs []dnswire.ResourceRecord) (time.Duration, bool) {
	for _, rr := range rrs {
		if rr.Type != dnswire.TypeSOA {
			continue
		}
		soa, err := dnswire.DecodeSOA(outerMsg, rr.RDOffset)
		if err != nil {
			continue
		}
		ttl := rr.TTL
		if soa.Minimum < ttl {
			ttl = soa.Minimum
		}
		return time.Duration(ttl) * time.Second, true
	}
	return 0, false
}

func hasNS(rrs []dnswire.ResourceRecord) bool {
	for _, rr := range rrs {
		if rr.Type == dnswire.TypeNS {
			return true
		}
	}
	return false
}

// NegativeKind distinguishes the two RFC 2308 negative-response shapes,
// since they cache at different scope: NODATA only refutes the type that
// was actually queried, while NXDOMAIN refutes every type for the name.
type NegativeKind int

const (
	// NotNegative means resp is an ordinary response; the caller should
	// process its answer section normally.
	NotNegative NegativeKind = iota

	// NegativeNoData is RCodeNoError with an empty answer section: name
	// exists but has no records of the queried type. The caller should
	// cache an empty positive result scoped to (name, qtype) — never the
	// name-wide negative cache, which would shadow other types.
	NegativeNoData

	// NegativeNXDomain means name does not exist at all, for any type.
	NegativeNXDomain
)

// ClassifyNegative applies the RFC 2308 cases from the response-validation
// step and reports which one resp falls into, plus the negative-caching
// TTL computed from the first decodable SOA in the authority section (RFC
// 2308 sections 3-4), when one was present. hasTTL is false when no usable
// SOA was found, or when an NS in the authority section signals a referral
// rather than authoritative NODATA — in both cases the caller should treat
// the response as negative but skip caching it.
//
// outerMsg is the full message resp's authority records were decoded from,
// needed to resolve compression pointers inside their RDATA.
func ClassifyNegative(outerMsg []byte, resp Response) (kind NegativeKind, ttl time.Duration, hasTTL bool) {
	switch {
	case resp.Header.RCode == dnswire.RCodeNoError && len(resp.Answers) == 0:
		if hasNS(resp.Authorities) {
			return NegativeNoData, 0, false
		}
		ttl, ok := minSOATTL(outerMsg, resp.Authorities)
		return NegativeNoData, ttl, ok

	case resp.Header.RCode == dnswire.RCodeNXDomain:
		ttl, ok := minSOATTL(outerMsg, resp.Authorities)
		return NegativeNXDomain, ttl, ok

	default:
		return NotNegative, 0, false
	}
}

// decodeCNAMETarget reads a CNAME record's RDATA as a name, resolving any
// compression pointer against outerMsg. offset is the record's RDOffset —
// CNAME RDATA is essentially never the tail of the message (the terminal
// A/AAAA record, or later sections, typically follow it in the same
// answer), so the offset has to come from the record, not be derived from
// buffer lengths.
func decodeCNAMETarget(outerMsg []byte, offset int) (string, error) {
	name, _, err := dnsname.ReadName(outerMsg, offset)
	if err != nil {
		return "", fmt.Errorf("%w: cname target: %v", dnswire.ErrProtocol, err)
	}
	return name, nil
}

// formatAddress renders an A or AAAA record's raw RDATA as a textual IP
// address. The caller is trusted to have already checked qtype == rr.Type;
// rdata.len is validated against the RFC 1035 fixed widths (4 for A, 16
// for AAAA) here since a malformed server response is the only way either
// length could be wrong.
func formatAddress(qtype uint16, rdata []byte) (string, error) {
	switch qtype {
	case dnswire.TypeA:
		if len(rdata) != 4 {
			return "", fmt.Errorf("%w: a record rdata must be 4 bytes", dnswire.ErrProtocol)
		}
		return net.IP(rdata).String(), nil
	case dnswire.TypeAAAA:
		if len(rdata) != 16 {
			return "", fmt.Errorf("%w: aaaa record rdata must be 16 bytes", dnswire.ErrProtocol)
		}
		return net.IP(rdata).String(), nil
	default:
		return "", fmt.Errorf("%w: unsupported address qtype %d", dnswire.ErrProtocol, qtype)
	}
}

// Addresses walks resp.Answers following the CNAME chain rooted at name,
// collecting every record of type qtype (dnswire.TypeA or
// dnswire.TypeAAAA) owned by the current alias. Servers commonly return
// the whole chain plus the terminal address records in one answer
// section, in whatever order the chain requires the walk to tolerate.
// Malformed CNAME or address RDATA is skipped rather than failing the
// whole walk, since later answers may still resolve the name.
func Addresses(outerMsg []byte, resp Response, name string, qtype uint16) []AddressResult {
	alias := name
	var out []AddressResult
	for _, rr := range resp.Answers {
		if rr.Name != alias {
			continue
		}
		switch {
		case rr.Type == dnswire.TypeCNAME:
			target, err := decodeCNAMETarget(outerMsg, rr.RDOffset)
			if err != nil {
				continue
			}
			alias = target
		case rr.Type == qtype:
			addr, err := formatAddress(qtype, rr.RData)
			if err != nil {
				continue
			}
			out = append(out, AddressResult{
				ExpiresAt: resp.StartedAt.Add(time.Duration(rr.TTL) * time.Second),
				Address:   addr,
			})
		}
	}
	return out
}

// Services decodes every SRV answer in resp, attaching any A/AAAA
// addresses the server supplied in the additional section for that SRV
// record's target. A decode failure on one SRV answer is skipped; it does
// not abort decoding the rest.
func Services(outerMsg []byte, resp Response) []ServiceResult {
	var out []ServiceResult
	for _, rr := range resp.Answers {
		if rr.Type != dnswire.TypeSRV {
			continue
		}
		srv, err := dnswire.DecodeSRV(outerMsg, rr.RDOffset, rr.RData)
		if err != nil {
			continue
		}

		result := ServiceResult{
			ExpiresAt: resp.StartedAt.Add(time.Duration(rr.TTL) * time.Second),
			Priority:  srv.Priority,
			Weight:    srv.Weight,
			Port:      srv.Port,
			Target:    srv.Target,
		}
		for _, extra := range resp.Additionals {
			if extra.Name != srv.Target {
				continue
			}
			var addr string
			switch extra.Type {
			case dnswire.TypeA:
				addr, err = formatAddress(dnswire.TypeA, extra.RData)
			case dnswire.TypeAAAA:
				addr, err = formatAddress(dnswire.TypeAAAA, extra.RData)
			default:
				continue
			}
			if err != nil {
				continue
			}
			result.Addresses = append(result.Addresses, AddressResult{
				ExpiresAt: resp.StartedAt.Add(time.Duration(extra.TTL) * time.Second),
				Address:   addr,
			})
		}
		out = append(out, result)
	}
	return out
}

// Text copies every TXT answer's RDATA into a fresh TxtResult, so the
// caller can release resp's backing buffer without invalidating the
// returned results.
func Text(resp Response) []TxtResult {
	var out []TxtResult
	for _, rr := range resp.Answers {
		if rr.Type != dnswire.TypeTXT {
			continue
		}
		data := make([]byte, len(rr.RData))
		copy(data, rr.RData)
		out = append(out, TxtResult{TTL: rr.TTL, Data: data})
	}
	return out
}
