// Package statuslist implements the compressed bitstring carried by status
// list credentials and the registry of status entry types that reference it.
package statuslist

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/multiformats/go-multibase"
)

// DefaultLength is the minimum bitstring size (16KB) recommended for herd privacy.
const DefaultLength = 131072

// MaxDecodedBytes caps the decompressed size of an encoded list.
const MaxDecodedBytes = 16 << 20

var (
	ErrIndexOutOfRange = errors.New("statuslist: index out of range")
	ErrInvalidEncoding = errors.New("statuslist: invalid encoded list")
	ErrInvalidLength   = errors.New("statuslist: invalid bitstring length")
)

// Encoding selects the textual form of an encoded list.
type Encoding string

const (
	// EncodingMultibase prefixes base64url (no padding) with 'u'.
	EncodingMultibase Encoding = "multibase"
	// EncodingBase64URL is bare base64url without padding.
	EncodingBase64URL Encoding = "base64url"
)

// Bitstring is a fixed-size bit array. Index 0 is the most significant bit of
// the first byte.
type Bitstring struct {
	bits     []byte
	encoding Encoding
}

func NewBitstring(length int) (*Bitstring, error) {
	if length <= 0 || length%8 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	return &Bitstring{bits: make([]byte, length/8), encoding: EncodingMultibase}, nil
}

// Decode parses an encodedList value. The encoding style of the input is
// retained so that Encode writes the list back in the same form.
func Decode(encoded string) (*Bitstring, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidEncoding)
	}

	var (
		compressed []byte
		encoding   Encoding
		err        error
	)
	if strings.HasPrefix(encoded, "u") {
		_, compressed, err = multibase.Decode(encoded)
		encoding = EncodingMultibase
	}
	if compressed == nil {
		compressed, err = decodeBase64URL(encoded)
		encoding = EncodingBase64URL
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	defer func() { _ = reader.Close() }()

	raw, err := io.ReadAll(io.LimitReader(reader, MaxDecodedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(raw) > MaxDecodedBytes {
		return nil, fmt.Errorf("%w: decompressed list exceeds %d bytes", ErrInvalidLength, MaxDecodedBytes)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: 0", ErrInvalidLength)
	}
	return &Bitstring{bits: raw, encoding: encoding}, nil
}

func decodeBase64URL(value string) ([]byte, error) {
	trimmed := strings.TrimRight(value, "=")
	return base64.RawURLEncoding.DecodeString(trimmed)
}

// Len returns the number of addressable bits.
func (b *Bitstring) Len() int {
	if b == nil {
		return 0
	}
	return len(b.bits) * 8
}

func (b *Bitstring) Encoding() Encoding {
	if b == nil || b.encoding == "" {
		return EncodingMultibase
	}
	return b.encoding
}

func (b *Bitstring) Get(index int) (bool, error) {
	if err := b.checkIndex(index); err != nil {
		return false, err
	}
	return b.bits[index/8]&(1<<(7-uint(index%8))) != 0, nil
}

func (b *Bitstring) Set(index int, value bool) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	mask := byte(1 << (7 - uint(index%8)))
	if value {
		b.bits[index/8] |= mask
	} else {
		b.bits[index/8] &^= mask
	}
	return nil
}

func (b *Bitstring) checkIndex(index int) error {
	if b == nil || index < 0 || index >= b.Len() {
		return fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, index, b.Len())
	}
	return nil
}

// Encode gzips the bit array and renders it in the retained encoding.
func (b *Bitstring) Encode() (string, error) {
	if b == nil {
		return "", fmt.Errorf("%w: nil bitstring", ErrInvalidLength)
	}
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := writer.Write(b.bits); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	if b.Encoding() == EncodingBase64URL {
		return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
	}
	return multibase.Encode(multibase.Base64url, buf.Bytes())
}

// Bytes returns a copy of the raw bit array.
func (b *Bitstring) Bytes() []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b.bits...)
}
