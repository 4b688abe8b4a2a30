package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"15.1 GiB", 16213501542, true},
		{"1 KiB", 1024, true},
		{"2 MiB", 2 * 1024 * 1024, true},
		{"", 0, false},
		{"GiB", 0, false},
		{"abc GiB", 0, false},
		{"1 GB", 0, false},
		{"1 gib", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSize(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseSizeToBytes(t *testing.T) {
	got, ok := ParseSizeToBytes("500 MB")
	assert.True(t, ok)
	assert.Equal(t, int64(500000000), got)

	got, ok = ParseSizeToBytes("1.5 gb")
	assert.True(t, ok)
	assert.Equal(t, int64(1500000000), got)

	_, ok = ParseSizeToBytes("1 GiB")
	assert.False(t, ok)

	_, ok = ParseSizeToBytes("")
	assert.False(t, ok)
}

func TestBinaryAndDecimalDiffer(t *testing.T) {
	bin, _ := ParseSize("1 MiB")
	dec, _ := ParseSizeToBytes("1 MB")
	assert.NotEqual(t, bin, dec)
}
