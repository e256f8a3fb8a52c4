package protostream

import (
	"context"
	"io"
	"sync"

	"github.com/killa-beez/gopkgs/pool"
)

// Line is a line scanned by a MultiScanner.
type Line struct {
	// Source is the index of the source the line came from.
	Source int
	Bytes  []byte
	Term   Terminator
}

// MultiScanner scans lines from several sources at once. Each source is read by a single
// goroutine, so lines from one source arrive in order. Lines from different sources are
// interleaved.
type MultiScanner struct {
	scannerErrs []error
	lines       chan Line
	cancel      func()
	line        Line

	errLock sync.RWMutex
	err     error

	doneLock sync.Mutex
	doneChan chan struct{}
	done     bool

	// closed once every worker has returned
	finished chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMultiScanner starts scanning sources with opts.Concurrency workers.
func NewMultiScanner(ctx context.Context, sources []io.Reader, opts *Options) *MultiScanner {
	opts = opts.withDefaults()
	m := &MultiScanner{
		scannerErrs: make([]error, len(sources)),
		lines:       make(chan Line, opts.Concurrency*1024),
		doneChan:    make(chan struct{}),
		finished:    make(chan struct{}),
		closed:      make(chan struct{}),
	}
	ctx, m.cancel = context.WithCancel(ctx)

	p := pool.New(len(sources), opts.Concurrency)
	for i := range sources {
		i := i
		scanner := NewScanner(sources[i], opts)
		p.Add(pool.NewWorkUnit(func(ctx2 context.Context) {
			m.scannerErrs[i] = runScanner(ctx2, i, scanner, m.lines)
		}))
	}
	p.Start(ctx)
	go func() {
		p.Wait()
		close(m.finished)
		m.beDone()
	}()
	return m
}

func (m *MultiScanner) beDone() {
	m.doneLock.Lock()
	defer m.doneLock.Unlock()
	if m.done {
		return
	}
	close(m.doneChan)
	m.done = true
}

func runScanner(ctx context.Context, source int, scanner *Scanner, lines chan<- Line) error {
	for scanner.Scan(ctx) {
		line := Line{
			Source: source,
			Bytes:  scanner.Bytes(),
			Term:   scanner.Terminator(),
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case lines <- line:
		}
	}
	return scanner.Err()
}

// Close stops scanning. Scan returns false afterwards, even for lines already read. It does not
// close the sources, and a worker blocked in a source's Read returns only when that Read does.
func (m *MultiScanner) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	m.cancel()
	m.beDone()
	return nil
}

// Err returns the first error from any source.
func (m *MultiScanner) Err() error {
	m.errLock.RLock()
	err := m.err
	m.errLock.RUnlock()
	return err
}

// Scan advances to the next line from any source.
func (m *MultiScanner) Scan(ctx context.Context) bool {
	select {
	case <-m.closed:
		return false
	default:
	}

	select {
	case m.line = <-m.lines:
		return true
	default:
	}

	select {
	case m.line = <-m.lines:
		return true
	case <-ctx.Done():
		m.setErr(ctx.Err())
		return false
	case <-m.doneChan:
		// workers may have sent their last lines after the first select
		select {
		case m.line = <-m.lines:
			return true
		default:
		}
		select {
		case <-m.finished:
		default:
			// closed before the workers returned
			return false
		}
		for _, err := range m.scannerErrs {
			if err != nil {
				m.setErr(err)
				break
			}
		}
		return false
	}
}

func (m *MultiScanner) setErr(err error) {
	m.errLock.Lock()
	if m.err == nil {
		m.err = err
	}
	m.errLock.Unlock()
}

// Line returns the current line.
func (m *MultiScanner) Line() Line {
	return m.line
}
