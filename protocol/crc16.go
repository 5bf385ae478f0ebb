package protocol

// CRC16 computes the 16-bit checksum the link framing uses, seeded with
// 0xFFFF and folded byte by byte. An empty input returns the seed. Both
// ends of the link must run this exact routine or no frame ever verifies.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
