// Package protocol implements the Klipper-style framed serial protocol the
// uptime firmware uses to report its timebase to a host.
//
// A frame is: length, sequence, VLQ payload, CRC16 (big endian), 0x7E sync.
package protocol

// Version of the wire protocol implementation
const Version = "0.1.0"

// Framing constants
const (
	MessageMax         = 256 // Scratch output capacity
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F
)

// Message is a parsed frame
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Frame data without header/trailer
	CRC      uint16
}

// nextSeq advances a sequence byte within the 0x10-0x1F range
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
