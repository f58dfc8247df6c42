package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCcittSingle(t *testing.T) {
	crc := CRC16(0)
	crc.Single(10)
	assert.EqualValues(t, 0xA14A, crc)
}

// CRC-16/XMODEM check value for the ASCII string "123456789", the standard
// test vector for this polynomial/init/no-reflection combination.
func TestCcittBlockCheckValue(t *testing.T) {
	assert.EqualValues(t, 0x31C3, CRC16Block([]byte("123456789")))
}

func TestCcittBlockMatchesSingle(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	var viaSingle CRC16
	for _, b := range data {
		viaSingle.Single(b)
	}
	assert.EqualValues(t, viaSingle, CRC16Block(data))
}
