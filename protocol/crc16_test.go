package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte{0x00}, 0x0F87},
		{[]byte("123456789"), 0x6F91},
		{[]byte{MessageLengthMin, MessageDest}, 0x9E81},
		{[]byte{MessageLengthMin, MessageDest | 1}, 0x8F08},
	}

	for i, tc := range testCases {
		if result := CRC16(tc.data); result != tc.expected {
			t.Errorf("Test case %d: CRC16(%v) expected 0x%04X, got 0x%04X", i, tc.data, tc.expected, result)
		}
	}
}

func TestCRC16Different(t *testing.T) {
	data1 := []byte{0x01, 0x02, 0x03}
	data2 := []byte{0x01, 0x02, 0x04}

	if crc1, crc2 := CRC16(data1), CRC16(data2); crc1 == crc2 {
		t.Errorf("CRC16 collision: both inputs produced %04X", crc1)
	}
}
