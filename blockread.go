package protostream

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// ErrInvalidArgument is returned when an offset or count falls outside the buffer.
var ErrInvalidArgument = errors.New("invalid argument")

// same limit bufio uses before giving up on a reader that returns 0, nil
const maxConsecutiveEmptyReads = 100

// ReadBlock reads count bytes from r into buf starting at offset. It keeps calling r.Read until
// count bytes have been read or r reports end of input, so the returned n is less than count only
// at end of input. End of input is not an error. A count of 0 returns immediately without reading.
//
// ctx is checked before every call to r.Read.
func ReadBlock(ctx context.Context, r io.Reader, buf []byte, offset, count int) (int, error) {
	size := len(buf)
	if offset < 0 || offset > size {
		return 0, errors.Wrapf(ErrInvalidArgument, "offset %d out of range [0, %d]", offset, size)
	}
	if count < 0 || count > size {
		return 0, errors.Wrapf(ErrInvalidArgument, "count %d out of range [0, %d]", count, size)
	}
	if count == 0 {
		return 0, nil
	}
	if offset+count > size {
		return 0, errors.Wrapf(ErrInvalidArgument, "offset %d + count %d exceeds buffer length %d", offset, count, size)
	}

	var read int
	for read < count {
		n, err := readOnce(ctx, r, buf[offset+read:offset+count])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// ReadFull is like ReadBlock over all of buf, but a short read fails with io.ErrUnexpectedEOF.
func ReadFull(ctx context.Context, r io.Reader, buf []byte) (int, error) {
	n, err := ReadBlock(ctx, r, buf, 0, len(buf))
	if err == nil && n < len(buf) {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// ReadByte reads exactly one byte from r. End of input is io.ErrUnexpectedEOF. A byte that arrives
// together with a read error is returned with that error.
func ReadByte(ctx context.Context, r io.Reader) (byte, error) {
	b, ok, err := readByte(ctx, r)
	if !ok && err == io.EOF {
		return 0, io.ErrUnexpectedEOF
	}
	return b, err
}

// readByte reports whether a byte was read. err may be non-nil either way, and is io.EOF only when
// no byte was read at the end of input.
func readByte(ctx context.Context, r io.Reader) (byte, bool, error) {
	if br, ok := r.(io.ByteReader); ok {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		b, err := br.ReadByte()
		return b, err == nil, err
	}
	var p [1]byte
	n, err := readOnce(ctx, r, p[:])
	return p[0], n == 1, err
}

// readOnce performs one logical read. Empty reads with a nil error are retried. It only returns
// n == 0 along with a non-nil error.
func readOnce(ctx context.Context, r io.Reader, p []byte) (int, error) {
	for i := 0; i < maxConsecutiveEmptyReads; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := r.Read(p)
		if n > 0 {
			if err == io.EOF {
				err = nil
			}
			return n, err
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, io.ErrNoProgress
}
