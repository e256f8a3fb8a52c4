package protostream

import "io"

// SeekReporter is implemented by sources that know whether their Seek method works. A source
// reporting false is treated as non-seekable even when it implements io.Seeker.
type SeekReporter interface {
	CanSeek() bool
}

// CanSeek reports whether r supports getting and setting its read position.
func CanSeek(r io.Reader) bool {
	_, _, ok := position(r)
	return ok
}

// position returns r's seeker and its current absolute read position. Pipes and sockets wrapped in
// *os.File implement io.Seeker but fail here.
func position(r io.Reader) (io.Seeker, int64, bool) {
	s, ok := r.(io.Seeker)
	if !ok {
		return nil, 0, false
	}
	if sr, ok := r.(SeekReporter); ok && !sr.CanSeek() {
		return nil, 0, false
	}
	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, false
	}
	return s, pos, true
}
