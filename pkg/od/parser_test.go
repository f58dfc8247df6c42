package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDefault(t *testing.T) {
	od := Default()
	assert.NotNil(t, od)
}

// Both parser implementations are exercised against the same embedded
// default EDS; they must agree on at least entry 0x2003, which
// TestEntryUint also reads from the default dictionary.
func TestParseAndParseV2Agree(t *testing.T) {
	odParsed, err := Parse(rawDefaultOd, 0x10)
	assert.Nil(t, err)
	odParsedV2, err := ParseV2(rawDefaultOd, 0x10)
	assert.Nil(t, err)

	entry := odParsed.Index(0x2003)
	entryV2 := odParsedV2.Index(0x2003)
	assert.NotNil(t, entry)
	assert.NotNil(t, entryV2)
	assert.Equal(t, entry.Name, entryV2.Name)
}

func BenchmarkParser(b *testing.B) {
	b.Run("od default parse", func(b *testing.B) {
		for n := 0; n < b.N; n++ {
			_, err := Parse(rawDefaultOd, 0x10)
			assert.Nil(b, err)
		}
	})

	b.Run("od default parse v2", func(b *testing.B) {
		for n := 0; n < b.N; n++ {
			_, err := ParseV2(rawDefaultOd, 0x10)
			assert.Nil(b, err)
		}
	})

}
