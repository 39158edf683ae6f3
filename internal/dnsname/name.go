// Package dnsname encodes and decodes DNS domain names (RFC 1035 section
// 3.1), including compression pointers on the decode side.
package dnsname

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	maxLabelLength  = 63
	maxWireLength   = 255
	maxTextLength   = 253
	pointerTag      = 0xC0
	pointerTagMask  = 0xC0
	pointerOffsMask = 0x3FFF
)

// ErrProtocol is returned for any malformed name on the wire: a truncated
// label, a reserved length-byte tag, a forward or self-referencing
// compression pointer, or a decoded name exceeding the textual length
// limit.
var ErrProtocol = errors.New("dnsname: protocol error")

// WriteName encodes name as a sequence of length-prefixed labels terminated
// by a zero length byte, without compression (writers here only ever emit
// question names, so compression buys nothing). It returns the number of
// bytes written to buf starting at offset 0, or an error if name violates
// the label/name length limits or buf is too small.
func WriteName(buf []byte, name string) (int, error) {
	labels, err := splitLabels(name)
	if err != nil {
		return 0, err
	}

	wireLen := 1 // terminating zero label
	for _, l := range labels {
		wireLen += 1 + len(l)
	}
	if wireLen > maxWireLength {
		return 0, fmt.Errorf("%w: name too long on the wire (%d bytes)", ErrProtocol, wireLen)
	}
	if len(buf) < wireLen {
		return 0, fmt.Errorf("%w: buffer too small for name", ErrProtocol)
	}

	n := 0
	for _, l := range labels {
		buf[n] = byte(len(l))
		n++
		n += copy(buf[n:], l)
	}
	buf[n] = 0
	n++
	return n, nil
}

func splitLabels(name string) ([]string, error) {
	if name == "." || name == "" {
		return nil, nil
	}
	var labels []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			label := name[start:i]
			if i == len(name)-1 && start == i {
				// trailing dot on an otherwise terminated name
				break
			}
			if len(label) == 0 || len(label) > maxLabelLength {
				return nil, fmt.Errorf("%w: label length %d out of range", ErrProtocol, len(label))
			}
			labels = append(labels, label)
			start = i + 1
		}
	}
	if start < len(name) {
		label := name[start:]
		if len(label) > maxLabelLength {
			return nil, fmt.Errorf("%w: label length %d out of range", ErrProtocol, len(label))
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// ReadName decodes the name starting at offset in msg, resolving any
// compression pointers it encounters. It returns the decoded textual name,
// the number of bytes consumed from the message *at offset* (a pointer
// jump does not add to this count past the two bytes of the pointer
// itself), and an error.
//
// Pointer-loop safety is enforced by forward-pointer prohibition: once the
// decoder follows a pointer, every subsequent pointer it follows must
// target an offset strictly less than the offset of the label it is
// currently reading. Because every followed pointer strictly decreases
// the position, the decode is guaranteed to terminate within len(msg)
// jumps even over adversarial input — stricter than RFC 1035, but every
// conforming server response satisfies it.
func ReadName(msg []byte, offset int) (string, int, error) {
	if offset < 0 || offset >= len(msg) {
		return "", 0, fmt.Errorf("%w: name offset out of range", ErrProtocol)
	}

	var labels []string
	pos := offset
	consumed := -1 // set once we've jumped at least one pointer
	textLen := 0

	for {
		if pos >= len(msg) {
			return "", 0, fmt.Errorf("%w: truncated name", ErrProtocol)
		}

		lead := msg[pos]
		switch {
		case lead&pointerTagMask == pointerTag:
			if pos+2 > len(msg) {
				return "", 0, fmt.Errorf("%w: truncated compression pointer", ErrProtocol)
			}
			ptr := int(binary.BigEndian.Uint16(msg[pos:pos+2]) & pointerOffsMask)
			if consumed < 0 {
				consumed = pos + 2 - offset
			}
			if ptr >= pos {
				return "", 0, fmt.Errorf("%w: forward or self-referencing compression pointer", ErrProtocol)
			}
			pos = ptr

		case lead&pointerTagMask != 0:
			// top bits 10 or 01: reserved, not a valid label length
			return "", 0, fmt.Errorf("%w: reserved label length tag", ErrProtocol)

		case lead == 0:
			pos++
			if consumed < 0 {
				consumed = pos - offset
			}
			goto done

		default:
			length := int(lead)
			pos++
			if pos+length > len(msg) {
				return "", 0, fmt.Errorf("%w: truncated label", ErrProtocol)
			}
			label := string(msg[pos : pos+length])
			labels = append(labels, label)
			textLen += length + 1 // label plus separator/terminator
			if textLen > maxTextLength {
				return "", 0, fmt.Errorf("%w: name exceeds %d bytes", ErrProtocol, maxTextLength)
			}
			pos += length
		}
	}

done:
	if len(labels) == 0 {
		return ".", consumed, nil
	}

	name := make([]byte, 0, textLen)
	for _, l := range labels {
		name = append(name, l...)
		name = append(name, '.')
	}
	return string(name), consumed, nil
}
