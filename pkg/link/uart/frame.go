// Package uart carries link packets over a serial line. Both ends
// synchronize with a request/acknowledge handshake, then exchange
// sequenced, checksummed frames. Any framing error makes the receiver
// request a new handshake, so a dropped or corrupted byte costs a frame
// instead of the link.
package uart

import "time"

// Seq is the sequence number of a frame. Valid numbers never collide
// with the sync bytes.
type Seq byte

// NewSeq creates a random sequence number.
func NewSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next calculates the next sequence number.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 || n >= 0xf0 {
		n = 1
	}
	return Seq(n)
}

// IsValid checks if it's a valid sequence number.
func (s Seq) IsValid() bool {
	return s > 0 && s < 0xf0
}

// MaxFrameData is the largest payload of a frame.
const MaxFrameData = 0x7fff

// Frame is a payload with its sequence number. On the wire it is
// seq, length (2 bytes, big-endian), data, checksum.
type Frame struct {
	Seq  Seq
	Data []byte
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	n := len(f.Data)
	b := make([]byte, n+4)
	b[0], b[1], b[2] = byte(f.Seq), byte(n>>8), byte(n)
	copy(b[3:], f.Data)
	b[n+3] = checksum(f.Data)
	return b
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum
}
