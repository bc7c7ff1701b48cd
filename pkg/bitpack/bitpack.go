// Package bitpack converts between bit-packed shot rows and dense 0/1 byte
// slices. Rows follow the b8 convention: one row per shot, ceil(n/8) bytes
// per row, least-significant-bit-first within each byte, no padding between
// rows. Padding bits in the final byte of a row are undefined on input and
// written as zero on output.
package bitpack

import (
	"errors"
	"fmt"
)

// ErrRowLength indicates a bit-packed buffer whose length disagrees with the
// expected byte count for the declared number of bits.
var ErrRowLength = errors.New("bitpack: buffer length does not match expected row size")

// RowBytes returns the number of bytes occupied by one bit-packed row of
// numBits bits.
func RowBytes(numBits int) int {
	return (numBits + 7) / 8
}

// UnpackRow expands one bit-packed row into a dense slice of 0/1 bytes of
// length numBits. The row must be exactly RowBytes(numBits) bytes.
func UnpackRow(row []byte, numBits int) ([]uint8, error) {
	dst := make([]uint8, numBits)
	if err := UnpackRowInto(dst, row); err != nil {
		return nil, err
	}
	return dst, nil
}

// UnpackRowInto expands one bit-packed row into dst, one 0/1 byte per bit.
// len(dst) determines the number of bits; the row must be exactly
// RowBytes(len(dst)) bytes. Padding bits beyond len(dst) are ignored.
func UnpackRowInto(dst []uint8, row []byte) error {
	if len(row) != RowBytes(len(dst)) {
		return fmt.Errorf("%w: got %d bytes, want %d for %d bits",
			ErrRowLength, len(row), RowBytes(len(dst)), len(dst))
	}
	for i := range dst {
		dst[i] = (row[i>>3] >> (i & 7)) & 1
	}
	return nil
}

// PackRow packs a dense slice of 0/1 bytes into a bit-packed row of
// RowBytes(len(bits)) bytes. Any nonzero input byte is treated as a set bit.
// Padding bits in the final byte are zero.
func PackRow(bits []uint8) []byte {
	dst := make([]byte, RowBytes(len(bits)))
	PackRowInto(dst, bits)
	return dst
}

// PackRowInto packs bits into dst, which must be at least
// RowBytes(len(bits)) bytes. Bytes covered by the row are overwritten;
// padding bits are cleared.
func PackRowInto(dst []byte, bits []uint8) {
	for i := range dst[:RowBytes(len(bits))] {
		dst[i] = 0
	}
	for i, b := range bits {
		if b != 0 {
			dst[i>>3] |= 1 << (i & 7)
		}
	}
}
