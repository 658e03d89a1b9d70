// pbcheck decodes a protobuf payload against a message type loaded from
// .proto files and reports whether it is well formed.
//
//	pbcheck --proto-path ./protos --proto acme/orders/order.proto \
//	    --message acme.orders.Order --in order.bin
//
// The payload is read from --in, or stdin when --in is "-" or empty. zstd
// compressed payloads are recognised by their magic number or forced with
// --zstd, and may not decompress to more than --max-payload bytes. With
// --delimited the payload is a stream of varint length-prefixed
// messages.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/anirudhraja/pbcodec/wire"
)

type options struct {
	protoPaths       []string
	protos           []string
	message          string
	input            string
	zstd             bool
	delimited        bool
	requireCanonical bool
	maxPayload       uint64
	decode           wire.DecodeOptions
	verbose          bool
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, opts.verbose)
	opts.decode.Logger = &logger

	in := stdin
	if opts.input != "" && opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		in = f
	}
	payload, err := readPayload(in, opts.zstd, opts.maxPayload)
	if err != nil {
		return err
	}
	logger.Debug().Int("bytes", len(payload)).Str("input", opts.input).Msg("read payload")

	codec, err := loadCodec(opts, &logger)
	if err != nil {
		return err
	}
	rep, err := check(codec, opts, payload)
	if err != nil {
		return err
	}
	rep.print(stdout)
	if opts.requireCanonical && !rep.canonical {
		return fmt.Errorf("payload is not canonically encoded")
	}
	return nil
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var (
		opts       options
		configPath string
		flagOpts   options
		maxDepth   int
	)

	flagSet := pflag.NewFlagSet("pbcheck", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "TOML file with default settings")
	flagSet.StringSliceVarP(&flagOpts.protoPaths, "proto-path", "I", nil, "directory searched for .proto files and imports (repeatable)")
	flagSet.StringSliceVar(&flagOpts.protos, "proto", nil, ".proto file, directory or import path to load (repeatable)")
	flagSet.StringVarP(&flagOpts.message, "message", "m", "", "fully qualified message type of the payload")
	flagSet.StringVar(&flagOpts.input, "in", "-", "payload file, - for stdin")
	flagSet.BoolVar(&flagOpts.zstd, "zstd", false, "payload is zstd compressed")
	flagSet.BoolVar(&flagOpts.delimited, "delimited", false, "payload is a stream of length-prefixed messages")
	flagSet.BoolVar(&flagOpts.requireCanonical, "canonical", false, "fail unless re-encoding reproduces the payload")
	flagSet.BoolVar(&flagOpts.decode.StrictWireType, "strict-wire", false, "reject known fields with an unexpected wire type")
	flagSet.BoolVar(&flagOpts.decode.KeepUnknown, "keep-unknown", false, "retain unknown fields for re-encoding")
	flagSet.IntVar(&maxDepth, "max-depth", wire.DefaultMaxDepth, "maximum message nesting depth")
	flagSet.Uint64Var(&flagOpts.maxPayload, "max-payload", defaultMaxPayload, "maximum decompressed size of a zstd payload in bytes")
	flagSet.BoolVarP(&flagOpts.verbose, "verbose", "v", false, "log decode details")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	opts.decode = wire.DecodeOptionsFromEnv()
	opts.input = "-"
	opts.maxPayload = defaultMaxPayload
	if configPath != "" {
		if err := loadConfig(configPath, &opts); err != nil {
			return options{}, err
		}
	}

	if flagSet.Changed("proto-path") {
		opts.protoPaths = flagOpts.protoPaths
	}
	if flagSet.Changed("proto") {
		opts.protos = flagOpts.protos
	}
	if flagSet.Changed("message") {
		opts.message = flagOpts.message
	}
	if flagSet.Changed("in") {
		opts.input = flagOpts.input
	}
	if flagSet.Changed("zstd") {
		opts.zstd = flagOpts.zstd
	}
	if flagSet.Changed("delimited") {
		opts.delimited = flagOpts.delimited
	}
	if flagSet.Changed("canonical") {
		opts.requireCanonical = flagOpts.requireCanonical
	}
	if flagSet.Changed("strict-wire") {
		opts.decode.StrictWireType = flagOpts.decode.StrictWireType
	}
	if flagSet.Changed("keep-unknown") {
		opts.decode.KeepUnknown = flagOpts.decode.KeepUnknown
	}
	if flagSet.Changed("max-depth") {
		if maxDepth <= 0 {
			return options{}, fmt.Errorf("--max-depth must be positive, got %d", maxDepth)
		}
		opts.decode.MaxDepth = maxDepth
	}
	if flagSet.Changed("max-payload") {
		if flagOpts.maxPayload == 0 {
			return options{}, fmt.Errorf("--max-payload must be positive")
		}
		opts.maxPayload = flagOpts.maxPayload
	}
	if flagSet.Changed("verbose") {
		opts.verbose = flagOpts.verbose
	}

	if len(opts.protos) == 0 {
		return options{}, fmt.Errorf("no schema given: use --proto or protos in the config file")
	}
	if opts.message == "" {
		return options{}, fmt.Errorf("no message type given: use --message")
	}
	return opts, nil
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.TraceLevel
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "pbcheck").Logger()
}
