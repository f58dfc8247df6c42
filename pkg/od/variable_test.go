package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		datatype uint8
		value    string
	}{
		{UNSIGNED8, "0x7F"},
		{UNSIGNED16, "0x1234"},
		{UNSIGNED32, "0xCAFEBABE"},
		{INTEGER32, "-1000"},
	} {
		data, err := EncodeFromString(tc.value, tc.datatype, 0)
		assert.Nil(t, err)
		_, err = DecodeToString(data, tc.datatype, 16)
		assert.Nil(t, err)
		decoded, err := DecodeToString(data, tc.datatype, 10)
		assert.Nil(t, err)
		reencoded, err := EncodeFromString(decoded, tc.datatype, 0)
		assert.Nil(t, err)
		assert.Equal(t, data, reencoded)
	}
}

func TestEncode(t *testing.T) {

	data, err := EncodeFromString("0x10", UNSIGNED8, 0)
	assert.Nil(t, err)
	assert.EqualValues(t, []byte{0x10}, data)

	data, _ = EncodeFromString("0x10", UNSIGNED16, 0)
	assert.EqualValues(t, []byte{0x10, 0x00}, data)

	data, _ = EncodeFromString("0x10", UNSIGNED32, 0)
	assert.EqualValues(t, []byte{0x10, 0x00, 0x00, 0x00}, data)

	data, _ = EncodeFromString("0x20", INTEGER8, 0)
	assert.EqualValues(t, []byte{0x20}, data)

	data, _ = EncodeFromString("0x20", INTEGER16, 0)
	assert.EqualValues(t, []byte{0x20, 0x00}, data)

	data, _ = EncodeFromString("0x20", INTEGER32, 0)
	assert.EqualValues(t, []byte{0x20, 0x00, 0x00, 0x00}, data)

	data, _ = EncodeFromString("0x1", BOOLEAN, 0)
	assert.EqualValues(t, []byte{0x1}, data)

	_, err = EncodeFromString("90000", UNSIGNED8, 0)
	assert.NotNil(t, err)

}
