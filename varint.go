package protostream

import (
	"bytes"
	"context"
	"io"
	"math/bits"
)

// Values are written little-endian, 7 bits per byte, with the high bit of each byte flagging that
// more bytes follow. The encoding stops after at most 4 (32-bit) or 8 (64-bit) continuation bytes.
// The byte after those is always the last one and holds the remaining high-order bits as they
// are, so a maximum length value is 5 or 9 bytes.
const (
	continuations32 = 4
	continuations64 = 8

	// MaxVarintLen32 is the longest encoding of a 32-bit value.
	MaxVarintLen32 = continuations32 + 1
	// MaxVarintLen64 is the longest encoding of a 64-bit value.
	MaxVarintLen64 = continuations64 + 1
)

// WriteUvarint32 writes the varint encoding of v to w.
func WriteUvarint32(w io.ByteWriter, v uint32) error {
	return writeUvarint(w, uint64(v), continuations32)
}

// WriteUvarint64 writes the varint encoding of v to w.
func WriteUvarint64(w io.ByteWriter, v uint64) error {
	return writeUvarint(w, v, continuations64)
}

// WriteVarint32 writes the zigzag varint encoding of v to w.
func WriteVarint32(w io.ByteWriter, v int32) error {
	return WriteUvarint32(w, Zig32(v))
}

// WriteVarint64 writes the zigzag varint encoding of v to w.
func WriteVarint64(w io.ByteWriter, v int64) error {
	return WriteUvarint64(w, Zig64(v))
}

func writeUvarint(w io.ByteWriter, v uint64, continuations int) error {
	for i := 0; i < continuations && v >= 0x80; i++ {
		err := w.WriteByte(byte(v) | 0x80)
		if err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

// ReadUvarint32 reads a varint encoded 32-bit value from r. The source running out before the
// final byte is io.ErrUnexpectedEOF.
func ReadUvarint32(ctx context.Context, r io.Reader) (uint32, error) {
	v, err := readUvarint(ctx, r, continuations32)
	return uint32(v), err
}

// ReadUvarint64 reads a varint encoded 64-bit value from r. The source running out before the
// final byte is io.ErrUnexpectedEOF.
func ReadUvarint64(ctx context.Context, r io.Reader) (uint64, error) {
	return readUvarint(ctx, r, continuations64)
}

// ReadVarint32 reads a zigzag varint encoded 32-bit value from r.
func ReadVarint32(ctx context.Context, r io.Reader) (int32, error) {
	u, err := ReadUvarint32(ctx, r)
	return Zag32(u), err
}

// ReadVarint64 reads a zigzag varint encoded 64-bit value from r.
func ReadVarint64(ctx context.Context, r io.Reader) (int64, error) {
	u, err := ReadUvarint64(ctx, r)
	return Zag64(u), err
}

// readUvarint does not check the unused high bits of a final byte reached after the maximum number
// of continuation bytes. They are ORed in and whatever does not fit the value's width is lost.
func readUvarint(ctx context.Context, r io.Reader, continuations int) (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; i < continuations; i++ {
		b, err := ReadByte(ctx, r)
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			return v | uint64(b)<<shift, nil
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	b, err := ReadByte(ctx, r)
	if err != nil {
		return 0, err
	}
	return v | uint64(b)<<shift, nil
}

// appender is an io.ByteWriter over a growing slice.
type appender []byte

func (a *appender) WriteByte(c byte) error {
	*a = append(*a, c)
	return nil
}

// AppendUvarint32 appends the varint encoding of v to dst.
func AppendUvarint32(dst []byte, v uint32) []byte {
	a := appender(dst)
	_ = WriteUvarint32(&a, v) //nolint:errcheck // appender never fails
	return a
}

// AppendUvarint64 appends the varint encoding of v to dst.
func AppendUvarint64(dst []byte, v uint64) []byte {
	a := appender(dst)
	_ = WriteUvarint64(&a, v) //nolint:errcheck // appender never fails
	return a
}

// AppendVarint32 appends the zigzag varint encoding of v to dst.
func AppendVarint32(dst []byte, v int32) []byte {
	return AppendUvarint32(dst, Zig32(v))
}

// AppendVarint64 appends the zigzag varint encoding of v to dst.
func AppendVarint64(dst []byte, v int64) []byte {
	return AppendUvarint64(dst, Zig64(v))
}

// UvarintLen32 returns the number of bytes WriteUvarint32 writes for v.
func UvarintLen32(v uint32) int {
	return uvarintLen(uint64(v), MaxVarintLen32)
}

// UvarintLen64 returns the number of bytes WriteUvarint64 writes for v.
func UvarintLen64(v uint64) int {
	return uvarintLen(v, MaxVarintLen64)
}

func uvarintLen(v uint64, max int) int {
	n := (bits.Len64(v) + 6) / 7
	switch {
	case n == 0:
		return 1
	case n > max:
		return max
	}
	return n
}

// DecodeUvarint32 decodes a value from the front of buf and returns it with the number of bytes it
// took.
func DecodeUvarint32(buf []byte) (uint32, int, error) {
	br := bytes.NewReader(buf)
	v, err := ReadUvarint32(context.Background(), br)
	return v, len(buf) - br.Len(), err
}

// DecodeUvarint64 decodes a value from the front of buf and returns it with the number of bytes it
// took.
func DecodeUvarint64(buf []byte) (uint64, int, error) {
	br := bytes.NewReader(buf)
	v, err := ReadUvarint64(context.Background(), br)
	return v, len(buf) - br.Len(), err
}
