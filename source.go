package protostream

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// Validator is a function that returns true when a line passes validation
type Validator func(line []byte) bool

// Options are options for scanners and sources
type Options struct {
	// KeepEnds keeps line endings in scanned lines.
	KeepEnds bool
	// Validators filter scanned lines. A line must pass all of them.
	Validators []Validator
	// Concurrency is the number of sources a MultiScanner reads at once. Default is 1.
	Concurrency int
	// StorageClient is used to open gs:// sources. When nil Open creates an unauthenticated
	// client for each one.
	StorageClient *storage.Client
	// Gzip decompresses every source Open returns, not just names ending in .gz.
	Gzip bool
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		o = new(Options)
	}
	if o.Concurrency > 0 {
		return o
	}
	out := *o
	out.Concurrency = 1
	return &out
}

// Open opens the named source. The name "-" is stdin, names like gs://bucket/object are Google
// Cloud Storage objects and anything else is a local file. Sources ending in .gz are decompressed.
//
// Local files are seekable. Stdin, storage objects and decompressed sources are not.
func Open(ctx context.Context, name string, opts *Options) (io.ReadCloser, error) {
	opts = opts.withDefaults()
	var rdr io.ReadCloser
	var client *storage.Client
	switch {
	case name == "-":
		rdr = ioutil.NopCloser(os.Stdin)
	case strings.HasPrefix(name, "gs://"):
		var err error
		client, rdr, err = openObject(ctx, name, opts)
		if err != nil {
			return nil, err
		}
	default:
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		rdr = file
	}
	compressed := opts.Gzip || strings.HasSuffix(name, ".gz")
	if !compressed && client == nil {
		return rdr, nil
	}
	z := &objReader{
		client: client,
		plain:  !compressed,
	}
	err := z.Reset(rdr)
	if err != nil {
		_ = z.Close() //nolint:errcheck // already failing
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	return z, nil
}

func openObject(ctx context.Context, name string, opts *Options) (*storage.Client, io.ReadCloser, error) {
	bucket, obj := splitObjectName(name)
	if bucket == "" || obj == "" {
		return nil, nil, errors.Errorf("invalid storage object name %q", name)
	}
	client := opts.StorageClient
	var owned *storage.Client
	if client == nil {
		var err error
		client, err = storage.NewClient(ctx, option.WithoutAuthentication())
		if err != nil {
			return nil, nil, err
		}
		owned = client
	}
	rdr, err := client.Bucket(bucket).Object(obj).NewReader(ctx)
	if err != nil {
		if owned != nil {
			_ = owned.Close() //nolint:errcheck // already failing
		}
		return nil, nil, errors.Wrapf(err, "opening %s", name)
	}
	return owned, rdr, nil
}

func splitObjectName(name string) (bucket, obj string) {
	name = strings.TrimPrefix(name, "gs://")
	parts := strings.SplitN(name, "/", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// objReader wraps a source that is decompressed or owns a storage client.
type objReader struct {
	rdr    io.Reader
	gzRdr  *gzip.Reader
	client *storage.Client
	plain  bool
}

func (z *objReader) Read(p []byte) (n int, err error) {
	if z.plain {
		return z.rdr.Read(p)
	}
	return z.gzRdr.Read(p)
}

func (z *objReader) Close() error {
	var err error
	if z.gzRdr != nil {
		err = z.gzRdr.Close()
	}
	if rdr, ok := z.rdr.(io.Closer); ok {
		rdrErr := rdr.Close()
		if err == nil {
			err = rdrErr
		}
	}
	if z.client != nil {
		clientErr := z.client.Close()
		if err == nil {
			err = clientErr
		}
	}
	return err
}

func (z *objReader) Reset(r io.Reader) error {
	z.rdr = r
	if z.plain {
		return nil
	}
	if z.gzRdr == nil {
		var err error
		z.gzRdr, err = gzip.NewReader(r)
		return err
	}
	return z.gzRdr.Reset(r)
}
