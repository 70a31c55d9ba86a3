package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaddingMode_Pad(t *testing.T) {
	tests := []struct {
		name     string
		mode     PaddingMode
		input    []byte
		expected []byte
	}{
		{"PKCS7 partial", PaddingPKCS7, []byte("abc"), []byte("abc\x05\x05\x05\x05\x05")},
		{"PKCS7 aligned", PaddingPKCS7, []byte("abcdefgh"), []byte("abcdefgh\x08\x08\x08\x08\x08\x08\x08\x08")},
		{"PKCS7 empty", PaddingPKCS7, nil, bytes.Repeat([]byte{8}, 8)},
		{"ANSIX923 partial", PaddingANSIX923, []byte("abc"), []byte("abc\x00\x00\x00\x00\x05")},
		{"Zeros partial", PaddingZeros, []byte("abc"), []byte("abc\x00\x00\x00\x00\x00")},
		{"Zeros aligned", PaddingZeros, []byte("abcdefgh"), []byte("abcdefgh")},
		{"Zeros empty", PaddingZeros, []byte{}, []byte{}},
		{"None aligned", PaddingNone, []byte("abcdefgh"), []byte("abcdefgh")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.mode.pad(tt.input, 8)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
			assert.Equal(t, len(tt.expected), tt.mode.paddedLength(len(tt.input), 8))
		})
	}
}

func TestPaddingMode_PadISO10126(t *testing.T) {
	out, err := PaddingISO10126.pad([]byte("abc"), 8)
	require.NoError(t, err)
	require.Len(t, out, 8)
	assert.Equal(t, []byte("abc"), out[:3])
	assert.Equal(t, byte(5), out[7])

	n, err := PaddingISO10126.unpad(out, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPaddingMode_PadNoneMisaligned(t *testing.T) {
	_, err := PaddingNone.pad([]byte("abc"), 8)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestPaddingMode_Unpad(t *testing.T) {
	tests := []struct {
		name     string
		mode     PaddingMode
		input    []byte
		expected int
		valid    bool
	}{
		{"PKCS7 valid", PaddingPKCS7, []byte("abc\x05\x05\x05\x05\x05"), 3, true},
		{"PKCS7 full block", PaddingPKCS7, bytes.Repeat([]byte{8}, 8), 0, true},
		{"PKCS7 zero fill", PaddingPKCS7, []byte("abcdefg\x00"), 0, false},
		{"PKCS7 fill too large", PaddingPKCS7, []byte("abcdefg\x09"), 0, false},
		{"PKCS7 inconsistent", PaddingPKCS7, []byte("abc\x05\x05\x04\x05\x05"), 0, false},
		{"PKCS7 empty", PaddingPKCS7, []byte{}, 0, false},
		{"PKCS7 misaligned", PaddingPKCS7, []byte("abc\x01"), 0, false},
		{"ANSIX923 valid", PaddingANSIX923, []byte("abc\x00\x00\x00\x00\x05"), 3, true},
		{"ANSIX923 nonzero filler", PaddingANSIX923, []byte("abc\x00\x01\x00\x00\x05"), 0, false},
		{"ISO10126 random filler", PaddingISO10126, []byte("abc\x99\x13\x37\x00\x05"), 3, true},
		{"ISO10126 fill too large", PaddingISO10126, []byte("abcdefg\x10"), 0, false},
		{"Zeros not stripped", PaddingZeros, []byte("abc\x00\x00\x00\x00\x00"), 8, true},
		{"None untouched", PaddingNone, []byte("abcdefgh"), 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.mode.unpad(tt.input, 8)
			if !tt.valid {
				assert.ErrorIs(t, err, ErrPadding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestParsePaddingMode(t *testing.T) {
	for m := PaddingNone; m <= PaddingISO10126; m++ {
		parsed, err := ParsePaddingMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParsePaddingMode("OAEP")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "PaddingMode(9)", PaddingMode(9).String())
	assert.False(t, PaddingMode(0).valid())
}
