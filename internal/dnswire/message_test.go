package dnswire

import (
	"encoding/binary"
	"testing"

	"github.com/dnsscience/resolve/internal/dnsname"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		ID:      0xBEEF,
		QR:      true,
		Opcode:  0,
		AA:      true,
		TC:      false,
		RD:      true,
		RA:      true,
		Z:       0,
		RCode:   RCodeNoError,
		QDCount: 1,
		ANCount: 2,
		NSCount: 0,
		ARCount: 1,
	}

	buf := make([]byte, headerLen)
	w := NewWriter(buf)
	require.True(t, w.WriteHeader(h))

	r := NewReader(buf)
	got, err := r.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestWriteHeaderTooSmall(t *testing.T) {
	w := NewWriter(make([]byte, 4))
	assert.False(t, w.WriteHeader(Header{}))
}

func TestQuestionRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(buf)
	require.True(t, w.WriteHeader(Header{ID: 1, RD: true, QDCount: 1}))
	require.True(t, w.WriteQuestion(Question{Name: "example.com.", Type: TypeA, Class: ClassIN}))

	r := NewReader(w.Bytes())
	_, err := r.ReadHeader()
	require.NoError(t, err)

	q, err := r.ReadQuestion()
	require.NoError(t, err)
	assert.Equal(t, "example.com.", q.Name)
	assert.Equal(t, uint16(TypeA), q.Type)
	assert.Equal(t, uint16(ClassIN), q.Class)
}

func TestWriteQuestionInsufficientSpace(t *testing.T) {
	w := NewWriter(make([]byte, headerLen+2))
	require.True(t, w.WriteHeader(Header{}))
	assert.False(t, w.WriteQuestion(Question{Name: "example.com.", Type: TypeA, Class: ClassIN}))
}

func buildAnswerMessage(t *testing.T, rrType uint16, rdata []byte) []byte {
	t.Helper()

	buf := make([]byte, 512)
	w := NewWriter(buf)
	require.True(t, w.WriteHeader(Header{ID: 7, QR: true, QDCount: 1, ANCount: 1}))
	require.True(t, w.WriteQuestion(Question{Name: "example.com.", Type: rrType, Class: ClassIN}))

	pos := w.Len()
	n, err := writeNameRaw(buf[pos:], "example.com.")
	require.NoError(t, err)
	pos += n

	binary.BigEndian.PutUint16(buf[pos:pos+2], rrType)
	binary.BigEndian.PutUint16(buf[pos+2:pos+4], ClassIN)
	binary.BigEndian.PutUint32(buf[pos+4:pos+8], 300)
	binary.BigEndian.PutUint16(buf[pos+8:pos+10], uint16(len(rdata)))
	pos += 10
	pos += copy(buf[pos:], rdata)

	return buf[:pos]
}

func TestReadResourceRecordAliasesBuffer(t *testing.T) {
	rdata := []byte{192, 0, 2, 1}
	msg := buildAnswerMessage(t, TypeA, rdata)

	r := NewReader(msg)
	_, err := r.ReadHeader()
	require.NoError(t, err)
	_, err = r.ReadQuestion()
	require.NoError(t, err)

	rr, err := r.ReadResourceRecord()
	require.NoError(t, err)
	assert.Equal(t, "example.com.", rr.Name)
	assert.Equal(t, uint16(TypeA), rr.Type)
	assert.Equal(t, uint32(300), rr.TTL)
	assert.Equal(t, rdata, rr.RData)
}

func TestReadResourceRecordTruncatedRData(t *testing.T) {
	msg := buildAnswerMessage(t, TypeA, []byte{192, 0, 2, 1})
	truncated := msg[:len(msg)-2]

	r := NewReader(truncated)
	_, err := r.ReadHeader()
	require.NoError(t, err)
	_, err = r.ReadQuestion()
	require.NoError(t, err)

	_, err = r.ReadResourceRecord()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeSOA(t *testing.T) {
	buf := make([]byte, 512)
	w := NewWriter(buf)
	require.True(t, w.WriteHeader(Header{QDCount: 1, ANCount: 1}))
	require.True(t, w.WriteQuestion(Question{Name: "example.com.", Type: TypeSOA, Class: ClassIN}))

	pos := w.Len()
	n, err := writeNameRaw(buf[pos:], "example.com.")
	require.NoError(t, err)
	pos += n
	binary.BigEndian.PutUint16(buf[pos:pos+2], TypeSOA)
	binary.BigEndian.PutUint16(buf[pos+2:pos+4], ClassIN)
	binary.BigEndian.PutUint32(buf[pos+4:pos+8], 300)
	rdataStart := pos + 10

	rpos := rdataStart
	n, err = writeNameRaw(buf[rpos:], "ns1.example.com.")
	require.NoError(t, err)
	rpos += n
	n, err = writeNameRaw(buf[rpos:], "hostmaster.example.com.")
	require.NoError(t, err)
	rpos += n
	binary.BigEndian.PutUint32(buf[rpos:rpos+4], 2024010100)
	binary.BigEndian.PutUint32(buf[rpos+4:rpos+8], 3600)
	binary.BigEndian.PutUint32(buf[rpos+8:rpos+12], 600)
	binary.BigEndian.PutUint32(buf[rpos+12:rpos+16], 604800)
	binary.BigEndian.PutUint32(buf[rpos+16:rpos+20], 86400)
	rpos += 20

	binary.BigEndian.PutUint16(buf[pos+8:pos+10], uint16(rpos-rdataStart))

	// Trailing bytes after this record's RDATA (as there would be with
	// further records/sections in a real message) must not confuse offset
	// recovery: it has to come from RDOffset, not from message length.
	trailer := copy(buf[rpos:], []byte{0xAA, 0xBB, 0xCC, 0xDD})
	msg := buf[:rpos+trailer]

	soa, err := DecodeSOA(msg, rdataStart)
	require.NoError(t, err)
	assert.Equal(t, "ns1.example.com.", soa.MName)
	assert.Equal(t, "hostmaster.example.com.", soa.RName)
	assert.Equal(t, uint32(2024010100), soa.Serial)
	assert.Equal(t, uint32(86400), soa.Minimum)
}

func TestDecodeSRV(t *testing.T) {
	buf := make([]byte, 256)
	w := NewWriter(buf)
	require.True(t, w.WriteHeader(Header{QDCount: 1, ANCount: 1}))
	require.True(t, w.WriteQuestion(Question{Name: "_sip._tcp.example.com.", Type: TypeSRV, Class: ClassIN}))

	pos := w.Len()
	n, err := writeNameRaw(buf[pos:], "_sip._tcp.example.com.")
	require.NoError(t, err)
	pos += n
	binary.BigEndian.PutUint16(buf[pos:pos+2], TypeSRV)
	binary.BigEndian.PutUint16(buf[pos+2:pos+4], ClassIN)
	binary.BigEndian.PutUint32(buf[pos+4:pos+8], 300)
	rdataStart := pos + 10

	rpos := rdataStart
	binary.BigEndian.PutUint16(buf[rpos:rpos+2], 10)
	binary.BigEndian.PutUint16(buf[rpos+2:rpos+4], 20)
	binary.BigEndian.PutUint16(buf[rpos+4:rpos+6], 5060)
	rpos += 6
	n, err = writeNameRaw(buf[rpos:], "sipserver.example.com.")
	require.NoError(t, err)
	rpos += n

	binary.BigEndian.PutUint16(buf[pos+8:pos+10], uint16(rpos-rdataStart))

	// Trailing additional-section bytes after the SRV RDATA — offset
	// recovery must use RDOffset, not len(outerMsg)-len(rdata).
	trailer := copy(buf[rpos:], []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	msg := buf[:rpos+trailer]

	srv, err := DecodeSRV(msg, rdataStart, msg[rdataStart:rpos])
	require.NoError(t, err)
	assert.Equal(t, uint16(10), srv.Priority)
	assert.Equal(t, uint16(20), srv.Weight)
	assert.Equal(t, uint16(5060), srv.Port)
	assert.Equal(t, "sipserver.example.com.", srv.Target)
}

func writeNameRaw(buf []byte, name string) (int, error) {
	return dnsname.WriteName(buf, name)
}
