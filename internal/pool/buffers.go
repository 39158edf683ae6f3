// Package pool provides sync.Pool-backed wire buffers for the transport
// layer, so a busy resolver doesn't allocate a fresh byte slice per query.
package pool

import "sync"

const (
	// SmallBufferSize fits a UDP query and most UDP responses (512 bytes,
	// the pre-EDNS0 limit this resolver never exceeds since it sends no
	// EDNS0 OPT record).
	SmallBufferSize = 512
	// MediumBufferSize is the initial TCP read buffer; ExchangeTCP grows
	// past it if a response declares more.
	MediumBufferSize = 8192
	// LargeBufferSize is the maximum possible DNS message size over TCP.
	LargeBufferSize = 65535
)

var smallBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, SmallBufferSize)
		return &buf
	},
}

// GetSmallBuffer returns a 512-byte buffer for a UDP exchange.
func GetSmallBuffer() []byte {
	bufPtr := smallBufferPool.Get().(*[]byte)
	return (*bufPtr)[:SmallBufferSize]
}

// PutSmallBuffer returns buf to the pool. Undersized buffers are dropped
// rather than pooled.
func PutSmallBuffer(buf []byte) {
	if cap(buf) < SmallBufferSize {
		return
	}
	buf = buf[:cap(buf)]
	smallBufferPool.Put(&buf)
}

var mediumBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, MediumBufferSize)
		return &buf
	},
}

// GetMediumBuffer returns an 8KiB buffer for a TCP exchange.
func GetMediumBuffer() []byte {
	bufPtr := mediumBufferPool.Get().(*[]byte)
	return (*bufPtr)[:MediumBufferSize]
}

// PutMediumBuffer returns buf to the pool.
func PutMediumBuffer(buf []byte) {
	if cap(buf) < MediumBufferSize {
		return
	}
	buf = buf[:cap(buf)]
	mediumBufferPool.Put(&buf)
}

var largeBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, LargeBufferSize)
		return &buf
	},
}

// GetLargeBuffer returns a 64KiB buffer, sized for the largest possible TCP
// response.
func GetLargeBuffer() []byte {
	bufPtr := largeBufferPool.Get().(*[]byte)
	return (*bufPtr)[:LargeBufferSize]
}

// PutLargeBuffer returns buf to the pool.
func PutLargeBuffer(buf []byte) {
	if cap(buf) < LargeBufferSize {
		return
	}
	buf = buf[:cap(buf)]
	largeBufferPool.Put(&buf)
}

// PutBuffer hands buf to the smallest tier whose size is at least
// cap(buf). Each tier's Put drops buffers smaller than that tier's size,
// so only a buffer whose capacity equals a tier size is pooled: one whose
// capacity lies between two tier sizes is dropped, as is one larger than
// LargeBufferSize.
func PutBuffer(buf []byte) {
	switch {
	case cap(buf) <= SmallBufferSize:
		PutSmallBuffer(buf)
	case cap(buf) <= MediumBufferSize:
		PutMediumBuffer(buf)
	case cap(buf) <= LargeBufferSize:
		PutLargeBuffer(buf)
	}
}
