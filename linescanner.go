package protostream

import (
	"context"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// Terminator is the line ending that ended a line.
type Terminator int

const (
	// TermNone means the source ended before a line ending was found.
	TermNone Terminator = iota
	// TermLF is "\n", or "\r\n" when the source could look ahead to merge them.
	TermLF
	// TermCR is a "\r" not known to be followed by "\n".
	TermCR
)

func (t Terminator) String() string {
	switch t {
	case TermLF:
		return "lf"
	case TermCR:
		return "cr"
	default:
		return "none"
	}
}

// ReadLine reads the next line from r without its line ending.
//
// Lines end at "\n", "\r" or "\r\n". When r is seekable (see CanSeek) a "\r\n" pair is consumed
// together and reported as TermLF. Otherwise "\r" is reported as TermCR without reading further,
// and the caller must pass skipLF true on the next call so that a "\n" finishing the pair is
// discarded.
//
// If r ends before a line ending the bytes read so far are returned with TermNone and a nil error.
// An empty source gives an empty line and TermNone. A read error is returned along with the line
// as far as it was read.
func ReadLine(ctx context.Context, r io.Reader, skipLF bool) ([]byte, Terminator, error) {
	return readLine(ctx, r, skipLF, false)
}

// ReadLineWithEnd is ReadLine but keeps the line ending bytes in the returned line.
func ReadLineWithEnd(ctx context.Context, r io.Reader, skipLF bool) ([]byte, Terminator, error) {
	return readLine(ctx, r, skipLF, true)
}

func readLine(ctx context.Context, r io.Reader, skipLF, keepEnd bool) ([]byte, Terminator, error) {
	var line []byte
	for first := true; ; first = false {
		b, ok, err := readByte(ctx, r)
		if !ok {
			if err == io.EOF {
				err = nil
			}
			return line, TermNone, err
		}
		switch {
		case first && skipLF && b == '\n':
			if err != nil {
				return line, TermNone, err
			}
			continue
		case b == '\n':
			if keepEnd {
				line = append(line, b)
			}
			return line, TermLF, err
		case b == '\r':
			if keepEnd {
				line = append(line, b)
			}
			if err != nil {
				return line, TermCR, err
			}
			merged, err := mergeLF(ctx, r)
			if !merged {
				return line, TermCR, err
			}
			if keepEnd {
				line = append(line, '\n')
			}
			return line, TermLF, err
		}
		line = append(line, b)
		if err != nil {
			return line, TermNone, err
		}
	}
}

// mergeLF consumes the next byte of r if it is '\n' and seeks back over any other byte. It returns
// false without reading when r isn't seekable.
func mergeLF(ctx context.Context, r io.Reader) (bool, error) {
	s, pos, ok := position(r)
	if !ok {
		return false, nil
	}
	b, ok, err := readByte(ctx, r)
	if !ok {
		if err == io.EOF {
			err = nil
		}
		return false, err
	}
	if b == '\n' {
		return true, err
	}
	_, seekErr := s.Seek(pos, io.SeekStart)
	if err == nil {
		err = seekErr
	}
	return false, err
}

// DecodeLatin1 turns each byte of line into the character with the same code point.
func DecodeLatin1(line []byte) string {
	// every byte has a code point, so decoding can't fail
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(line) //nolint:errcheck
	return string(out)
}

// Scanner reads lines from a source one at a time, passing the skip-LF state between reads for
// sources that can't look ahead.
type Scanner struct {
	r      io.Reader
	opts   *Options
	skipLF bool
	line   []byte
	term   Terminator
	done   bool
	err    error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader, opts *Options) *Scanner {
	return &Scanner{
		r:    r,
		opts: opts.withDefaults(),
	}
}

func (s *Scanner) validateLine(line []byte) bool {
	for _, validator := range s.opts.Validators {
		ok := validator(line)
		if !ok {
			return false
		}
	}
	return true
}

// Scan advances to the next line that passes the scanner's validators. It returns false at the end
// of the source or on error. An unterminated empty fragment at the end is not a line.
func (s *Scanner) Scan(ctx context.Context) bool {
	for {
		if s.done || s.err != nil {
			return false
		}
		line, term, err := readLine(ctx, s.r, s.skipLF, s.opts.KeepEnds)
		if err != nil {
			s.err = err
			return false
		}
		s.skipLF = term == TermCR
		if term == TermNone {
			s.done = true
			if len(line) == 0 {
				return false
			}
		}
		s.line, s.term = line, term
		if s.validateLine(line) {
			return true
		}
	}
}

// Bytes returns the current line. The slice is not reused by later calls to Scan.
func (s *Scanner) Bytes() []byte {
	return s.line
}

// Text returns the current line as single-byte characters.
func (s *Scanner) Text() string {
	return DecodeLatin1(s.line)
}

// Terminator returns the line ending of the current line.
func (s *Scanner) Terminator() Terminator {
	return s.term
}

// Err returns the first error the scanner hit. Reaching the end of the source is not an error.
func (s *Scanner) Err() error {
	return s.err
}
