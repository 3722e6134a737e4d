package protocol

import (
	"bytes"
	"sync/atomic"
)

type frameStatus uint8

const (
	frameComplete frameStatus = iota
	frameIncomplete
	frameInvalid
)

// scanFrame validates the frame at the start of data and returns its length.
// data must not start with a sync byte.
func scanFrame(data []byte) (int, frameStatus) {
	if len(data) < MessageLengthMin {
		return 0, frameIncomplete
	}

	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return 0, frameInvalid
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, frameInvalid
	}
	if len(data) < msgLen {
		return 0, frameIncomplete
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return 0, frameInvalid
	}

	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return 0, frameInvalid
	}
	return msgLen, frameComplete
}

// framer splits a byte stream into frames, dropping garbage up to the next
// sync byte whenever a frame fails validation.
type framer struct {
	synchronized atomic.Bool
}

// next returns the first complete frame in data and the bytes after it.
// frame is nil when more input is needed; rest is then the unconsumed tail.
// resynced reports that synchronization was regained while scanning.
func (f *framer) next(data []byte) (frame, rest []byte, resynced bool) {
	for len(data) > 0 {
		if !f.synchronized.Load() {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				return nil, nil, resynced
			}
			data = data[i+1:]
			f.synchronized.Store(true)
			resynced = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		n, status := scanFrame(data)
		switch status {
		case frameIncomplete:
			return nil, data, resynced
		case frameInvalid:
			f.synchronized.Store(false)
			continue
		}
		return data[:n], data[n:], resynced
	}
	return nil, data, resynced
}

// parseMessage copies a validated frame into a Message
func parseMessage(frame []byte) *Message {
	n := len(frame)
	payload := make([]byte, n-MessageLengthMin)
	copy(payload, frame[MessageHeaderSize:n-MessageTrailerSize])
	return &Message{
		Length:   frame[MessagePositionLen],
		Sequence: frame[MessagePositionSeq],
		Payload:  payload,
		CRC:      uint16(frame[n-MessageTrailerCRC])<<8 | uint16(frame[n-MessageTrailerCRC+1]),
	}
}

// appendTrailer appends CRC and sync byte for the header+payload in msg
func appendTrailer(msg []byte) []byte {
	crc := CRC16(msg)
	return append(msg, uint8(crc>>8), uint8(crc), MessageValueSync)
}
