// Package dnswire reads and writes the fixed-layout parts of a DNS message
// (RFC 1035 section 4): the header, question entries, and resource record
// envelopes. Domain names within those structures are handled by
// internal/dnsname; RDATA payloads are left as opaque, borrowed byte slices
// for callers to interpret with DecodeSRV/DecodeSOA or their own decoding.
package dnswire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dnsscience/resolve/internal/dnsname"
)

// ErrProtocol is returned whenever a message violates the fixed-layout shape
// this package understands: a truncated header, a section entry that runs
// past the end of the message, or a declared count unsatisfiable by the
// remaining bytes.
var ErrProtocol = errors.New("dnswire: protocol error")

const headerLen = 12

// Record types and classes this resolver asks about or decodes RDATA for.
const (
	TypeA     = 1
	TypeNS    = 2
	TypeCNAME = 5
	TypeSOA   = 6
	TypePTR   = 12
	TypeMX    = 15
	TypeTXT   = 16
	TypeAAAA  = 28
	TypeSRV   = 33

	ClassIN = 1
)

// Response codes (RFC 1035 section 4.1.1).
const (
	RCodeNoError  = 0
	RCodeFormErr  = 1
	RCodeServFail = 2
	RCodeNXDomain = 3
	RCodeNotImp   = 4
	RCodeRefused  = 5
)

const (
	flagQR = 1 << 15
	flagTC = 1 << 9
	flagRD = 1 << 8
	flagRA = 1 << 7

	opcodeShift = 11
	opcodeMask  = 0x0F
	zShift      = 4
	zMask       = 0x07
	rcodeMask   = 0x0F
)

// Header is the 12-byte fixed header every DNS message starts with.
type Header struct {
	ID      uint16
	QR      bool
	Opcode  uint8
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8
	RCode   uint8
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is a single question-section entry.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// ResourceRecord is a single resource-record-section entry. RData borrows
// its backing array from the message buffer the Reader was created over; it
// is only valid for as long as that buffer is not reused. Callers who need
// to retain a record past the lifetime of the buffer must copy RData out.
type ResourceRecord struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	RData []byte

	// RDOffset is the byte offset of RData within the message buffer the
	// Reader was created over. DecodeSRV/DecodeSOA need it (rather than
	// deriving it from RData's length) because RData is rarely a suffix
	// of the whole message — later sections and records follow it.
	RDOffset int
}

// Reader decodes a DNS message section by section, tracking its own cursor.
type Reader struct {
	msg []byte
	pos int
}

// NewReader creates a Reader over msg, positioned at the start of the header.
func NewReader(msg []byte) *Reader {
	return &Reader{msg: msg}
}

// ReadHeader decodes the 12-byte header and advances past it.
func (r *Reader) ReadHeader() (Header, error) {
	if len(r.msg) < headerLen {
		return Header{}, fmt.Errorf("%w: message shorter than header", ErrProtocol)
	}

	var h Header
	h.ID = binary.BigEndian.Uint16(r.msg[0:2])

	flags := binary.BigEndian.Uint16(r.msg[2:4])
	h.QR = flags&flagQR != 0
	h.Opcode = uint8((flags >> opcodeShift) & opcodeMask)
	h.AA = flags&(1<<10) != 0
	h.TC = flags&flagTC != 0
	h.RD = flags&flagRD != 0
	h.RA = flags&flagRA != 0
	h.Z = uint8((flags >> zShift) & zMask)
	h.RCode = uint8(flags & rcodeMask)

	h.QDCount = binary.BigEndian.Uint16(r.msg[4:6])
	h.ANCount = binary.BigEndian.Uint16(r.msg[6:8])
	h.NSCount = binary.BigEndian.Uint16(r.msg[8:10])
	h.ARCount = binary.BigEndian.Uint16(r.msg[10:12])

	r.pos = headerLen
	return h, nil
}

// ReadQuestion decodes the next question-section entry.
func (r *Reader) ReadQuestion() (Question, error) {
	name, consumed, err := dnsname.ReadName(r.msg, r.pos)
	if err != nil {
		return Question{}, fmt.Errorf("%w: question name: %v", ErrProtocol, err)
	}
	r.pos += consumed

	if r.pos+4 > len(r.msg) {
		return Question{}, fmt.Errorf("%w: truncated question", ErrProtocol)
	}

	q := Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(r.msg[r.pos : r.pos+2]),
		Class: binary.BigEndian.Uint16(r.msg[r.pos+2 : r.pos+4]),
	}
	r.pos += 4
	return q, nil
}

// ReadResourceRecord decodes the next resource-record-section entry. The
// returned record's RData aliases r's underlying buffer.
func (r *Reader) ReadResourceRecord() (ResourceRecord, error) {
	name, consumed, err := dnsname.ReadName(r.msg, r.pos)
	if err != nil {
		return ResourceRecord{}, fmt.Errorf("%w: rr name: %v", ErrProtocol, err)
	}
	r.pos += consumed

	if r.pos+10 > len(r.msg) {
		return ResourceRecord{}, fmt.Errorf("%w: truncated rr header", ErrProtocol)
	}

	rr := ResourceRecord{
		Name:  name,
		Type:  binary.BigEndian.Uint16(r.msg[r.pos : r.pos+2]),
		Class: binary.BigEndian.Uint16(r.msg[r.pos+2 : r.pos+4]),
		TTL:   binary.BigEndian.Uint32(r.msg[r.pos+4 : r.pos+8]),
	}
	rdlength := int(binary.BigEndian.Uint16(r.msg[r.pos+8 : r.pos+10]))
	r.pos += 10

	if r.pos+rdlength > len(r.msg) {
		return ResourceRecord{}, fmt.Errorf("%w: rdata runs past end of message", ErrProtocol)
	}
	rr.RDOffset = r.pos
	rr.RData = r.msg[r.pos : r.pos+rdlength]
	r.pos += rdlength

	return rr, nil
}

// Pos reports the reader's current byte offset into the message.
func (r *Reader) Pos() int { return r.pos }

// Bytes returns the full message buffer the reader was created over. SRV,
// SOA, and CNAME RDATA may carry compression pointers back into this
// buffer, so a caller decoding those needs it even after advancing well
// past them.
func (r *Reader) Bytes() []byte { return r.msg }

// Writer builds a DNS message into a caller-supplied buffer. Writer never
// grows its buffer; callers on a size-sensitive path (UDP) size buf from
// internal/pool before writing.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter creates a Writer over buf, positioned at offset 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// WriteHeader encodes h at the start of the buffer. It returns false if buf
// is smaller than the fixed header size.
func (w *Writer) WriteHeader(h Header) bool {
	if len(w.buf) < headerLen {
		return false
	}

	binary.BigEndian.PutUint16(w.buf[0:2], h.ID)

	var flags uint16
	if h.QR {
		flags |= flagQR
	}
	flags |= uint16(h.Opcode&opcodeMask) << opcodeShift
	if h.AA {
		flags |= 1 << 10
	}
	if h.TC {
		flags |= flagTC
	}
	if h.RD {
		flags |= flagRD
	}
	if h.RA {
		flags |= flagRA
	}
	flags |= uint16(h.Z&zMask) << zShift
	flags |= uint16(h.RCode & rcodeMask)
	binary.BigEndian.PutUint16(w.buf[2:4], flags)

	binary.BigEndian.PutUint16(w.buf[4:6], h.QDCount)
	binary.BigEndian.PutUint16(w.buf[6:8], h.ANCount)
	binary.BigEndian.PutUint16(w.buf[8:10], h.NSCount)
	binary.BigEndian.PutUint16(w.buf[10:12], h.ARCount)

	w.pos = headerLen
	return true
}

// WriteQuestion appends a single question entry. It returns false, leaving
// the buffer unmodified past the last successful write, if there is not
// enough room.
func (w *Writer) WriteQuestion(q Question) bool {
	if len(w.buf)-w.pos < 4 {
		return false
	}
	// The last 4 bytes are held back for type/class, so a name that would
	// leave no room for them fails inside WriteName before writing anything.
	n, err := dnsname.WriteName(w.buf[w.pos:len(w.buf)-4], q.Name)
	if err != nil {
		return false
	}

	w.pos += n
	binary.BigEndian.PutUint16(w.buf[w.pos:w.pos+2], q.Type)
	binary.BigEndian.PutUint16(w.buf[w.pos+2:w.pos+4], q.Class)
	w.pos += 4
	return true
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int { return w.pos }

// Bytes returns the written prefix of the buffer.
func (w *Writer) Bytes() []byte { return w.buf[:w.pos] }
