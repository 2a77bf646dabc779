package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeByteMatchesKnownVectors(t *testing.T) {
	cases := []struct {
		in   byte
		want [4]byte
	}{
		{0xFF, [4]byte{0xEE, 0xEE, 0xEE, 0xEE}},
		{0xF0, [4]byte{0xEE, 0xEE, 0x88, 0x88}},
		{0x80, [4]byte{0xE8, 0x88, 0x88, 0x88}},
		{0x10, [4]byte{0x88, 0x8E, 0x88, 0x88}},
		{0x01, [4]byte{0x88, 0x88, 0x88, 0x8E}},
		{0x00, [4]byte{0x88, 0x88, 0x88, 0x88}},
	}
	for _, tc := range cases {
		out := make([]byte, 4)
		encodeByte(tc.in, out)
		assert.Equal(t, tc.want[:], out, "byte %#02x", tc.in)
	}
}
