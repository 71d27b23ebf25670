package statuslist

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitstring_SetUsesMostSignificantBitFirst(t *testing.T) {
	bits, err := NewBitstring(16)
	require.NoError(t, err)

	require.NoError(t, bits.Set(0, true))
	require.NoError(t, bits.Set(9, true))

	assert.Equal(t, []byte{0x80, 0x40}, bits.Bytes())

	value, err := bits.Get(9)
	require.NoError(t, err)
	assert.True(t, value)

	value, err = bits.Get(1)
	require.NoError(t, err)
	assert.False(t, value)
}

func TestBitstring_SetFalseClearsBit(t *testing.T) {
	bits, err := NewBitstring(8)
	require.NoError(t, err)
	require.NoError(t, bits.Set(3, true))
	require.NoError(t, bits.Set(3, false))
	assert.Equal(t, []byte{0x00}, bits.Bytes())
}

func TestBitstring_RejectsOutOfRangeIndex(t *testing.T) {
	bits, err := NewBitstring(8)
	require.NoError(t, err)

	_, err = bits.Get(8)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, bits.Set(-1, true), ErrIndexOutOfRange)
}

func TestNewBitstring_RejectsLengthNotMultipleOfEight(t *testing.T) {
	_, err := NewBitstring(12)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestBitstring_EncodeDecodeMultibase(t *testing.T) {
	bits, err := NewBitstring(DefaultLength)
	require.NoError(t, err)
	require.NoError(t, bits.Set(94567, true))

	encoded, err := bits.Encode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "u"), "expected multibase prefix, got %q", encoded[:4])

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, DefaultLength, decoded.Len())
	assert.Equal(t, EncodingMultibase, decoded.Encoding())

	set, err := decoded.Get(94567)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestDecode_AcceptsBareBase64URLAndKeepsEncoding(t *testing.T) {
	raw := make([]byte, 16)
	raw[0] = 0x01

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	_, err := writer.Write(raw)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	encoded := base64.URLEncoding.EncodeToString(buf.Bytes())

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, EncodingBase64URL, decoded.Encoding())

	set, err := decoded.Get(7)
	require.NoError(t, err)
	assert.True(t, set)

	reencoded, err := decoded.Encode()
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(reencoded, "u"))

	again, err := Decode(reencoded)
	require.NoError(t, err)
	assert.Equal(t, decoded.Bytes(), again.Bytes())
}

func TestBitstring_EncodeIsStableForUnchangedBits(t *testing.T) {
	bits, err := NewBitstring(1024)
	require.NoError(t, err)
	require.NoError(t, bits.Set(5, true))

	first, err := bits.Encode()
	require.NoError(t, err)
	second, err := bits.Encode()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode("not-a-gzip-list")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = Decode("  ")
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func gzipZeros(t *testing.T, size int) string {
	t.Helper()
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	require.NoError(t, err)
	chunk := make([]byte, 64<<10)
	for remaining := size; remaining > 0; remaining -= len(chunk) {
		n := min(remaining, len(chunk))
		_, err := writer.Write(chunk[:n])
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return base64.RawURLEncoding.EncodeToString(buf.Bytes())
}

func TestDecode_RejectsOversizedDecompressedList(t *testing.T) {
	encoded := gzipZeros(t, MaxDecodedBytes+1)
	assert.Less(t, len(encoded), 1<<20, "payload should stay small on the wire")

	_, err := Decode(encoded)
	assert.ErrorIs(t, err, ErrInvalidLength)

	decoded, err := Decode(gzipZeros(t, MaxDecodedBytes))
	require.NoError(t, err)
	assert.Equal(t, MaxDecodedBytes*8, decoded.Len())
}
