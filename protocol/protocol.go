// Package protocol implements the framed serial link between the register
// relay firmware and its host. Every message on the wire is
//
//	[length] [sequence] [payload ...] [crc high] [crc low] [sync]
//
// with length counting the whole frame, a 4-bit sequence counter carried in
// the low nibble of the sequence byte (high bits always 0x10), a 16-bit
// checksum over header plus payload, and a fixed sync byte terminating the
// frame. Payloads are VLQ-encoded command or response streams; an empty
// payload is an acknowledgment.
//
// The same framing runs in both directions. The device side lives in
// Transport, the host side in HostTransport.
package protocol

// Version is the firmware version string reported through the dictionary.
const Version = "0.1.0"

// Frame layout constants.
const (
	MessageHeaderSize  = 2  // length byte + sequence byte
	MessageTrailerSize = 3  // two CRC bytes + sync byte
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64 // longest frame either side will accept
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3 // CRC offset back from frame end
	MessageTrailerSync = 1 // sync offset back from frame end
	MessageValueSync   = 0x7E
	MessageDest        = 0x10 // fixed high bits of every sequence byte
	MessageSeqMask     = 0x0F

	// MessageMax sizes the scratch output buffer: several frames deep so
	// responses can queue behind an acknowledgment.
	MessageMax = 512
)
