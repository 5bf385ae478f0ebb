package protocol

import (
	"bytes"
	"sync/atomic"
)

// CommandHandler decodes and executes one command from a frame payload,
// advancing data past everything it consumed.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device end of the link. One instance owns the frame
// receive state machine and the output buffer; Receive is driven from the
// main loop whenever port bytes arrive.
//
// Sequence discipline: frames must arrive with the expected 4-bit counter.
// A matching frame is executed and acknowledged with the advanced counter;
// anything else is answered with an acknowledgment of the counter still
// expected, which the host reads as a NAK and retransmits on. A frame
// carrying the reset-value counter while a later one was expected means
// the host restarted, and the device follows it back down.
type Transport struct {
	isSynchronized uint32 // atomic bool (0 = false, 1 = true)
	nextSequence   uint32 // atomic: next expected sequence byte

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func() // invoked when a host restart is detected
	flushCallback func() // invoked to push an acknowledgment out immediately
}

// NewTransport creates a device transport writing frames to output and
// dispatching decoded commands to handler.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		isSynchronized: 1,
		nextSequence:   MessageDest,
		output:         output,
		handler:        handler,
	}
}

// Receive consumes whatever complete frames the input holds. Partial
// frames stay buffered for the next call; anything unparseable drops the
// link into the desynchronized state, where bytes are discarded until a
// sync byte comes past.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			syncPos := bytes.IndexByte(data, MessageValueSync)
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			t.setSynchronized(true)
			// Tell the host where the counter stands so it can
			// retransmit whatever was lost.
			t.sendAck()
			continue
		}

		// Frames may be separated by stray sync bytes; skip them.
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			t.setSynchronized(false)
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^byte(MessageSeqMask) != MessageDest {
			t.setSynchronized(false)
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			t.setSynchronized(false)
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			t.setSynchronized(false)
			continue
		}

		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		expectedSeq := uint8(atomic.LoadUint32(&t.nextSequence))
		if seq == MessageDest && expectedSeq != MessageDest {
			// Host restart: follow its counter back to the start.
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			expectedSeq = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if seq == expectedSeq {
			nextSeq := ((seq + 1) & MessageSeqMask) | MessageDest
			atomic.StoreUint32(&t.nextSequence, uint32(nextSeq))
			_ = t.parseFrame(frame)
		}
		// Acknowledge matched and mismatched frames alike; for a
		// mismatch the unchanged counter is the NAK.
		t.sendAck()
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame runs every command in a frame payload. A handler panic is
// contained here: the link desynchronizes and recovers through the resync
// path instead of taking the firmware down.
func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynchronized(false)
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.setSynchronized(false)
			return err
		}

		if t.handler != nil {
			if err := t.handler(uint16(cmdID), &frame); err != nil {
				// Handler errors abort the rest of the frame but
				// do not desynchronize the link.
				return err
			}
		}
	}
	return nil
}

// sendAck emits an empty frame carrying the expected-sequence counter and
// flushes the output immediately, queued responses included. The host
// blocks on this acknowledgment, so it must never wait for the main loop.
func (t *Transport) sendAck() {
	ns := uint8(atomic.LoadUint32(&t.nextSequence))
	crc := CRC16([]byte{MessageLengthMin, ns})

	t.output.Output([]byte{
		MessageLengthMin,
		ns,
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame wraps the payload written by frameData in a complete frame:
// header patched with the final length, checksum, sync byte. Responses
// reuse the current expected-sequence counter; any number of frames may
// carry the same counter value.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := t.output.CurPosition()

	seq := uint8(atomic.LoadUint32(&t.nextSequence))
	t.output.Output([]byte{0, seq})

	frameData(t.output)

	changed := len(t.output.DataSince(cursor))
	t.output.Update(cursor, uint8(changed+MessageTrailerSize))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{
		uint8(crc >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
}

// SendCommand encodes a command ID plus arguments as one frame.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset restores the synchronized start state. Used after a port
// disconnect so the next host session starts clean.
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)

	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback registers a hook for detected host restarts.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback registers the hook sendAck uses to push bytes to the
// port without waiting for the main loop.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

func (t *Transport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&t.isSynchronized, 1)
	} else {
		atomic.StoreUint32(&t.isSynchronized, 0)
	}
}
