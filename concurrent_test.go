package protostream

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_MultiScanner(t *testing.T) {
	ctx := context.Background()
	var sources []io.Reader
	var want []string
	for i := 0; i < 5; i++ {
		var sb strings.Builder
		for j := 0; j < 100; j++ {
			line := fmt.Sprintf("source %d line %d", i, j)
			want = append(want, line)
			sb.WriteString(line)
			sb.WriteString([]string{"\n", "\r\n", "\r"}[j%3])
		}
		sources = append(sources, readerOnly{strings.NewReader(sb.String())})
	}
	scanner := NewMultiScanner(ctx, sources, &Options{Concurrency: 3})
	t.Cleanup(func() {
		require.NoError(t, scanner.Close())
	})
	var got []string
	next := make([]int, len(sources))
	for scanner.Scan(ctx) {
		line := scanner.Line()
		require.Equal(t, fmt.Sprintf("source %d line %d", line.Source, next[line.Source]), string(line.Bytes))
		next[line.Source]++
		got = append(got, string(line.Bytes))
	}
	require.NoError(t, scanner.Err())
	sort.Strings(got)
	sort.Strings(want)
	require.Equal(t, want, got)
}

func Test_MultiScanner_error(t *testing.T) {
	ctx := context.Background()
	sources := []io.Reader{
		strings.NewReader("a\nb\n"),
		iotest.TimeoutReader(iotest.OneByteReader(strings.NewReader("c\n"))),
	}
	scanner := NewMultiScanner(ctx, sources, nil)
	t.Cleanup(func() {
		require.NoError(t, scanner.Close())
	})
	var count int
	for scanner.Scan(ctx) {
		count++
	}
	require.Equal(t, iotest.ErrTimeout, scanner.Err())
	require.Equal(t, 2, count)
}

func manyLines(n int) io.Reader {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "line %d\r\n", i)
	}
	return readerOnly{strings.NewReader(sb.String())}
}

// requireFinished fails unless every worker of m returns in time.
func requireFinished(t *testing.T, m *MultiScanner) {
	t.Helper()
	select {
	case <-m.finished:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not return")
	}
}

func Test_MultiScanner_cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scanner := NewMultiScanner(ctx, []io.Reader{manyLines(5000)}, nil)
	t.Cleanup(func() {
		require.NoError(t, scanner.Close())
	})
	for i := 0; i < 10; i++ {
		require.True(t, scanner.Scan(ctx))
	}
	cancel()
	var count int
	for scanner.Scan(ctx) {
		count++
	}
	require.Less(t, count, 5000-10)
	require.Equal(t, context.Canceled, scanner.Err())
	requireFinished(t, scanner)
}

func Test_MultiScanner_scanContextDone(t *testing.T) {
	pr, pw := io.Pipe()
	scanner := NewMultiScanner(context.Background(), []io.Reader{pr}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, scanner.Scan(ctx))
	require.Equal(t, context.Canceled, scanner.Err())

	require.NoError(t, scanner.Close())
	require.NoError(t, pw.Close())
	requireFinished(t, scanner)
}

func Test_MultiScanner_Close(t *testing.T) {
	ctx := context.Background()

	t.Run("worker blocked sending", func(t *testing.T) {
		scanner := NewMultiScanner(ctx, []io.Reader{manyLines(5000)}, nil)
		require.Eventually(t, func() bool {
			return len(scanner.lines) == cap(scanner.lines)
		}, 5*time.Second, time.Millisecond)
		require.NoError(t, scanner.Close())
		require.False(t, scanner.Scan(ctx))
		requireFinished(t, scanner)
		require.NoError(t, scanner.Err())
		require.NoError(t, scanner.Close())
	})

	t.Run("scan waiting on a source", func(t *testing.T) {
		pr, pw := io.Pipe()
		scanner := NewMultiScanner(ctx, []io.Reader{pr}, nil)
		result := make(chan bool)
		go func() {
			result <- scanner.Scan(ctx)
		}()
		require.NoError(t, scanner.Close())
		select {
		case got := <-result:
			require.False(t, got)
		case <-time.After(5 * time.Second):
			t.Fatal("Scan did not return after Close")
		}
		require.NoError(t, pw.Close())
		requireFinished(t, scanner)
	})
}
