package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
)

var cli struct {
	Lines  linesCmd  `kong:"cmd,help='print lines from files, stdin or gs://bucket/object sources'"`
	Encode encodeCmd `kong:"cmd,help='print the varint encoding of integers as hex'"`
	Decode decodeCmd `kong:"cmd,help='decode a hex sequence of varints'"`
}

func main() {
	k := kong.Parse(&cli,
		kong.Name("protostream"),
		kong.Description("read protocol lines and varints from byte streams"),
	)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	var err error
	switch strings.Fields(k.Command())[0] {
	case "lines":
		err = cli.Lines.run(ctx, os.Stdout)
	case "encode":
		err = cli.Encode.run(os.Stdout)
	case "decode":
		err = cli.Decode.run(ctx, os.Stdout)
	}
	if err == context.Canceled {
		return
	}
	k.FatalIfErrorf(err, "%s failed", k.Command())
}
