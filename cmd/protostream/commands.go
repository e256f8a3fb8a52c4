package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/willabides/protostream"
)

type linesCmd struct {
	Files         []string `kong:"arg,optional,help='sources to read. - is stdin, which is also the default'"`
	KeepEnds      bool     `kong:"help='keep line endings as they were read'"`
	JSON          bool     `kong:"name=json,help='output a json object per line'"`
	NoEmptyLines  bool     `kong:"help='skip empty lines'"`
	OnlyValidJSON bool     `kong:"help='skip lines that are not valid json'"`
	Gzip          bool     `kong:"help='decompress every source, not just .gz ones'"`
	Concurrency   int      `kong:"default=1,help='number of sources to read at once'"`
}

type lineRecord struct {
	Source     string `json:"source"`
	Line       string `json:"line"`
	Terminator string `json:"terminator"`
}

func (c *linesCmd) options() *protostream.Options {
	opts := &protostream.Options{
		KeepEnds:    c.KeepEnds,
		Gzip:        c.Gzip,
		Concurrency: c.Concurrency,
	}
	if c.NoEmptyLines {
		opts.Validators = append(opts.Validators, protostream.ValidateNotEmpty())
	}
	if c.OnlyValidJSON {
		opts.Validators = append(opts.Validators, protostream.ValidateJSON())
	}
	return opts
}

func (c *linesCmd) run(ctx context.Context, w io.Writer) (errOut error) {
	names := c.Files
	if len(names) == 0 {
		names = []string{"-"}
	}
	opts := c.options()
	sources := make([]io.Reader, 0, len(names))
	closers := make([]io.Closer, 0, len(names))
	defer func() {
		for _, closer := range closers {
			closeErr := closer.Close()
			if errOut == nil {
				errOut = closeErr
			}
		}
	}()
	for _, name := range names {
		rdr, err := protostream.Open(ctx, name, opts)
		if err != nil {
			return err
		}
		sources = append(sources, rdr)
		closers = append(closers, rdr)
	}

	out := bufio.NewWriter(w)
	defer func() {
		flushErr := out.Flush()
		if errOut == nil {
			errOut = flushErr
		}
	}()

	if opts.Concurrency > 1 && len(sources) > 1 {
		ms := protostream.NewMultiScanner(ctx, sources, opts)
		defer func() {
			_ = ms.Close() //nolint:errcheck // always nil
		}()
		for ms.Scan(ctx) {
			line := ms.Line()
			err := c.writeLine(out, names[line.Source], line.Bytes, line.Term)
			if err != nil {
				return err
			}
		}
		return ms.Err()
	}

	for i, src := range sources {
		sc := protostream.NewScanner(src, opts)
		for sc.Scan(ctx) {
			err := c.writeLine(out, names[i], sc.Bytes(), sc.Terminator())
			if err != nil {
				return err
			}
		}
		if sc.Err() != nil {
			return sc.Err()
		}
	}
	return nil
}

func (c *linesCmd) writeLine(out *bufio.Writer, source string, line []byte, term protostream.Terminator) error {
	if c.JSON {
		b, err := jsoniter.ConfigFastest.Marshal(lineRecord{
			Source:     source,
			Line:       protostream.DecodeLatin1(line),
			Terminator: term.String(),
		})
		if err != nil {
			return err
		}
		_, err = out.Write(append(b, '\n'))
		return err
	}
	_, err := out.Write(line)
	if err != nil || c.KeepEnds {
		return err
	}
	return out.WriteByte('\n')
}

type encodeCmd struct {
	Bits   int      `kong:"default=64,help='integer width, 32 or 64'"`
	Signed bool     `kong:"help='zigzag encode signed integers'"`
	Values []string `kong:"arg,help='integers to encode'"`
}

func (c *encodeCmd) run(w io.Writer) error {
	if c.Bits != 32 && c.Bits != 64 {
		return errors.Errorf("invalid bits %d", c.Bits)
	}
	for _, val := range c.Values {
		buf, err := c.encode(val)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\t% X\n", val, buf)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *encodeCmd) encode(val string) ([]byte, error) {
	if c.Signed {
		v, err := strconv.ParseInt(val, 0, c.Bits)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid value %q", val)
		}
		if c.Bits == 32 {
			return protostream.AppendVarint32(nil, int32(v)), nil
		}
		return protostream.AppendVarint64(nil, v), nil
	}
	v, err := strconv.ParseUint(val, 0, c.Bits)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value %q", val)
	}
	if c.Bits == 32 {
		return protostream.AppendUvarint32(nil, uint32(v)), nil
	}
	return protostream.AppendUvarint64(nil, v), nil
}

type decodeCmd struct {
	Bits   int      `kong:"default=64,help='integer width, 32 or 64'"`
	Signed bool     `kong:"help='zigzag decode signed integers'"`
	Hex    []string `kong:"arg,help='hex bytes such as AC 02'"`
}

func (c *decodeCmd) run(ctx context.Context, w io.Writer) error {
	if c.Bits != 32 && c.Bits != 64 {
		return errors.Errorf("invalid bits %d", c.Bits)
	}
	data, err := hex.DecodeString(strings.Join(strings.Fields(strings.Join(c.Hex, " ")), ""))
	if err != nil {
		return errors.Wrap(err, "invalid hex")
	}
	rdr := bytes.NewReader(data)
	for rdr.Len() > 0 {
		offset := len(data) - rdr.Len()
		val, err := c.decode(ctx, rdr)
		if err != nil {
			return errors.Wrapf(err, "decoding at offset %d", offset)
		}
		_, err = fmt.Fprintln(w, val)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *decodeCmd) decode(ctx context.Context, r io.Reader) (string, error) {
	switch {
	case c.Bits == 32 && c.Signed:
		v, err := protostream.ReadVarint32(ctx, r)
		return strconv.FormatInt(int64(v), 10), err
	case c.Bits == 32:
		v, err := protostream.ReadUvarint32(ctx, r)
		return strconv.FormatUint(uint64(v), 10), err
	case c.Signed:
		v, err := protostream.ReadVarint64(ctx, r)
		return strconv.FormatInt(v, 10), err
	default:
		v, err := protostream.ReadUvarint64(ctx, r)
		return strconv.FormatUint(v, 10), err
	}
}
