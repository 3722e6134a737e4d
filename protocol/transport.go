package protocol

import "sync/atomic"

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the MCU side of the protocol: it validates frames from the
// host, dispatches their commands, and acknowledges every frame.
type Transport struct {
	framer framer
	// Expected sequence from the host (0x10-0x1F). ACKs and responses carry
	// the same value.
	nextSequence atomic.Uint32

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func() // Called when a host reset is detected
	flushCallback func() // Called to push an ACK out immediately
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		output:  output,
		handler: handler,
	}
	t.framer.synchronized.Store(true)
	t.nextSequence.Store(MessageDest)
	return t
}

// Receive processes incoming data and pops what it consumed from input.
// A trailing partial frame is left in input for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for {
		frame, rest, resynced := t.framer.next(data)
		data = rest
		if resynced {
			t.encodeAckNak()
		}
		if frame == nil {
			break
		}

		seq := frame[MessagePositionSeq]
		expected := uint8(t.nextSequence.Load())

		// A host that restarts begins again at MESSAGE_DEST
		if seq == MessageDest && expected != MessageDest {
			t.nextSequence.Store(MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if seq == expected {
			t.nextSequence.Store(uint32(nextSeq(seq)))
			_ = t.parseFrame(frame[MessageHeaderSize : len(frame)-MessageTrailerSize])
		}
		// ACK on match, NAK (carrying the expected sequence) otherwise
		t.encodeAckNak()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every command in a frame
func (t *Transport) parseFrame(frame []byte) (err error) {
	// A panicking handler must not take the firmware down
	defer func() {
		if r := recover(); r != nil {
			t.framer.synchronized.Store(false)
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.framer.synchronized.Store(false)
			return err
		}
		if t.handler != nil {
			// Handler errors drop the rest of the frame but keep sync
			if err := t.handler(uint16(cmdID), &frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeAckNak queues an empty frame carrying the next expected sequence
func (t *Transport) encodeAckNak() {
	ns := uint8(t.nextSequence.Load())
	t.output.Output(appendTrailer([]byte{MessageLengthMin, ns}))

	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one frame whose payload is produced by frameData
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := t.output.CurPosition()

	seq := uint8(t.nextSequence.Load())
	t.output.Output([]byte{0, seq})
	frameData(t.output)

	t.output.Update(cursor, uint8(len(t.output.DataSince(cursor))+MessageTrailerSize))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand sends a message with its VLQ-encoded arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	t.framer.synchronized.Store(true)
	t.nextSequence.Store(MessageDest)

	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback to be called when host reset is detected
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that pushes queued output to the wire
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
