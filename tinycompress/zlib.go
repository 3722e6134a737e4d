// Package tinycompress writes zlib streams made of stored DEFLATE blocks.
// Nothing is actually compressed: the output only has to be readable by a
// standard zlib decoder on the host, and a stored-block encoder needs no
// tables or sliding window on the MCU.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

const (
	zlibHeaderSize = 2
	storedHeader   = 5 // BFINAL/BTYPE byte, LEN, NLEN
	adlerSize      = 4

	// MaxBlock is the largest payload of one stored block
	MaxBlock = 0xFFFF
)

var ErrClosed = errors.New("tinycompress: write after close")

// zlib CMF/FLG for deflate, 32K window, default level
var zlibHeader = [zlibHeaderSize]byte{0x78, 0x9C}

// Writer buffers everything written to it and emits the zlib stream on Close.
// The buffer is allocated once up front when sizeHint is right, so Write does
// not allocate on the MCU.
type Writer struct {
	output io.Writer
	input  []byte
	closed bool
}

// NewWriter creates a zlib writer. sizeHint preallocates the input buffer.
func NewWriter(w io.Writer, sizeHint int) *Writer {
	return &Writer{
		output: w,
		input:  make([]byte, 0, sizeHint),
	}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	w.input = append(w.input, p...)
	return len(p), nil
}

// Close writes the complete stream to the underlying writer
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.output.Write(Compress(w.input))
	return err
}

// EncodedSize returns the length of the zlib stream for n input bytes
func EncodedSize(n int) int {
	blocks := (n + MaxBlock - 1) / MaxBlock
	if blocks == 0 {
		blocks = 1 // an empty stream still needs one final block
	}
	return zlibHeaderSize + blocks*storedHeader + n + adlerSize
}

// Compress returns data wrapped as a zlib stream of stored blocks
func Compress(data []byte) []byte {
	out := make([]byte, 0, EncodedSize(len(data)))
	out = append(out, zlibHeader[:]...)

	rest := data
	for {
		n := len(rest)
		if n > MaxBlock {
			n = MaxBlock
		}
		final := byte(0)
		if n == len(rest) {
			final = 1
		}

		length := uint16(n)
		nlength := ^length
		out = append(out, final,
			byte(length), byte(length>>8),
			byte(nlength), byte(nlength>>8))
		out = append(out, rest[:n]...)
		rest = rest[n:]

		if final == 1 {
			break
		}
	}

	checksum := adler32.Checksum(data)
	return append(out,
		byte(checksum>>24), byte(checksum>>16),
		byte(checksum>>8), byte(checksum))
}
