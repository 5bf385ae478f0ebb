package protocol

import "testing"

func TestCRC16KnownValues(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"single zero", []byte{0x00}, 0x0F87},
		{"single one", []byte{0x01}, 0x1E0E},
		{"single ff", []byte{0xFF}, 0x00FF},
		{"ack header", []byte{5, MessageDest}, 0x9E81},
		{"check sequence", []byte("123456789"), 0x6F91},
	}

	for _, tc := range testCases {
		result := CRC16(tc.data)
		if result != tc.expected {
			t.Errorf("%s: Expected 0x%04X, got 0x%04X", tc.name, tc.expected, result)
		}
	}
}

func TestCRC16Consistency(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	crc1 := CRC16(data)
	crc2 := CRC16(data)

	if crc1 != crc2 {
		t.Errorf("CRC16 not consistent: first=%04X, second=%04X", crc1, crc2)
	}
}

func TestCRC16DetectsSingleBitFlips(t *testing.T) {
	frame := []byte{7, MessageDest, 0x2A, 0x81, 0x05}
	want := CRC16(frame)

	for i := range frame {
		for bit := uint(0); bit < 8; bit++ {
			frame[i] ^= 1 << bit
			if got := CRC16(frame); got == want {
				t.Errorf("flip of byte %d bit %d not detected (crc %04X)", i, bit, got)
			}
			frame[i] ^= 1 << bit
		}
	}
}
