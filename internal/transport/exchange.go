// Package transport exchanges a single pre-built DNS query with a single
// server over UDP or TCP and hands the caller back a decodable response.
// It holds no state across exchanges: every call dials its own socket, the
// way a stub resolver that never pools sockets across queries should.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dnsscience/resolve/internal/dnswire"
	"github.com/dnsscience/resolve/internal/pool"
)

// ErrIO covers dial/read/write failures distinct from a protocol violation
// in the response itself.
var ErrIO = errors.New("transport: i/o error")

const maxUDPReadAttempts = 8

// Response is a decoded reply together with the pooled buffer backing it.
// Callers must call Release once they are done reading from Reader —
// ResourceRecord.RData in particular aliases this buffer.
type Response struct {
	Reader *dnswire.Reader
	Header dnswire.Header

	buf     []byte
	release func([]byte)
}

// Release returns the response's backing buffer to its pool. It is safe to
// call once; calling it more than once, or not at all, only costs an
// allocation on the next Get, never correctness.
func (r *Response) Release() {
	if r.release != nil {
		r.release(r.buf)
		r.release = nil
	}
}

// ExchangeUDP sends query to serverAddr over UDP and waits for a response
// whose transaction ID is wantID and whose QR bit is set, discarding any
// stray datagram that doesn't match (a prior query's late reply, or traffic
// from an unrelated source hitting the same ephemeral port).
func ExchangeUDP(ctx context.Context, serverAddr string, query []byte, wantID uint16) (*Response, error) {
	conn, err := dialContext(ctx, "udp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial udp %s: %v", ErrIO, serverAddr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(query); err != nil {
		return nil, fmt.Errorf("%w: write udp %s: %v", ErrIO, serverAddr, err)
	}

	buf := pool.GetSmallBuffer()
	for attempt := 0; attempt < maxUDPReadAttempts; attempt++ {
		n, err := conn.Read(buf)
		if err != nil {
			pool.PutSmallBuffer(buf)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: read udp %s: %v", ErrIO, serverAddr, err)
		}

		resp := buf[:n]
		r := dnswire.NewReader(resp)
		h, err := r.ReadHeader()
		if err != nil {
			// Malformed stray datagram: keep listening for the real reply.
			continue
		}
		if h.ID != wantID || !h.QR {
			continue
		}

		return &Response{Reader: r, Header: h, buf: buf, release: pool.PutSmallBuffer}, nil
	}

	pool.PutSmallBuffer(buf)
	return nil, fmt.Errorf("%w: no matching udp response from %s after %d attempts", ErrIO, serverAddr, maxUDPReadAttempts)
}

// ExchangeTCP sends a length-prefixed query to serverAddr over TCP (RFC
// 1035 section 4.2.2) and reads a single length-prefixed response. The
// response buffer starts at pool's medium tier and is replaced by the
// large tier if the declared length doesn't fit.
func ExchangeTCP(ctx context.Context, serverAddr string, query []byte, wantID uint16) (*Response, error) {
	conn, err := dialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial tcp %s: %v", ErrIO, serverAddr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(query)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("%w: write tcp length prefix to %s: %v", ErrIO, serverAddr, err)
	}
	if _, err := conn.Write(query); err != nil {
		return nil, fmt.Errorf("%w: write tcp query to %s: %v", ErrIO, serverAddr, err)
	}

	if _, err := io.ReadFull(conn, lenPrefix[:]); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read tcp length prefix from %s: %v", ErrIO, serverAddr, err)
	}
	respLen := int(binary.BigEndian.Uint16(lenPrefix[:]))

	var buf []byte
	var release func([]byte)
	switch {
	case respLen <= pool.MediumBufferSize:
		buf = pool.GetMediumBuffer()
		release = pool.PutMediumBuffer
	default:
		buf = pool.GetLargeBuffer()
		release = pool.PutLargeBuffer
	}
	buf = buf[:respLen]

	if _, err := io.ReadFull(conn, buf); err != nil {
		release(buf[:cap(buf)])
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read tcp body from %s: %v", ErrIO, serverAddr, err)
	}

	r := dnswire.NewReader(buf)
	h, err := r.ReadHeader()
	if err != nil {
		release(buf[:cap(buf)])
		return nil, fmt.Errorf("%w: %v", dnswire.ErrProtocol, err)
	}
	if h.ID != wantID || !h.QR {
		release(buf[:cap(buf)])
		return nil, fmt.Errorf("%w: tcp response from %s has id=%d qr=%v, want id=%d qr=true", dnswire.ErrProtocol, serverAddr, h.ID, h.QR, wantID)
	}

	return &Response{Reader: r, Header: h, buf: buf[:cap(buf)], release: release}, nil
}

func dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}
