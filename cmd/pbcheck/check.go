package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/anirudhraja/pbcodec"
	"github.com/anirudhraja/pbcodec/wire"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// defaultMaxPayload bounds the decompressed size of a zstd payload.
const defaultMaxPayload = 256 << 20

// readPayload reads all of r, decompressing zstd frames when forced or when
// the data starts with the zstd magic number. Decompression fails once the
// output would exceed maxSize bytes.
func readPayload(r io.Reader, forceZstd bool, maxSize uint64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !forceZstd && !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(maxSize),
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return out, nil
}

// loadCodec loads every schema source in opts. Existing paths are loaded as
// files or directories; anything else is an import path under the proto paths.
func loadCodec(opts options, logger *zerolog.Logger) (*pbcodec.Codec, error) {
	codec := pbcodec.NewWithConfig(pbcodec.Config{
		ProtoPaths: opts.protoPaths,
		Decode:     opts.decode,
		Logger:     logger,
	})
	for _, p := range opts.protos {
		var err error
		if _, statErr := os.Stat(p); statErr == nil {
			err = codec.LoadSchema(p)
		} else {
			err = codec.LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
	}
	logger.Debug().Strs("messages", codec.ListMessages()).Msg("schema loaded")
	return codec, nil
}

type report struct {
	message   string
	messages  int
	bytes     int
	unknown   int
	canonical bool
}

func (r report) print(w io.Writer) {
	fmt.Fprintf(w, "ok: %d %s message(s), %d bytes\n", r.messages, r.message, r.bytes)
	if r.unknown > 0 {
		fmt.Fprintf(w, "unknown fields: %d bytes\n", r.unknown)
	}
	if r.canonical {
		fmt.Fprintln(w, "canonical: yes")
	} else {
		fmt.Fprintln(w, "canonical: no")
	}
}

// check decodes payload and re-encodes the result to see whether the input
// was in canonical form.
func check(codec *pbcodec.Codec, opts options, payload []byte) (report, error) {
	desc, err := codec.Descriptor(opts.message)
	if err != nil {
		return report{}, err
	}
	rep := report{message: desc.Name(), bytes: len(payload)}

	if !opts.delimited {
		m, err := opts.decode.Unmarshal(payload, desc)
		if err != nil {
			return report{}, err
		}
		rep.messages = 1
		rep.unknown = len(m.Unknown())
		rep.canonical = bytes.Equal(m.Marshal(), payload)
		return rep, nil
	}

	d := wire.NewDecoderWithOptions(payload, opts.decode)
	var reencoded []byte
	for !d.EOF() {
		start := d.Pos()
		m, err := wire.ReadDelimited(d, desc)
		if err != nil {
			return report{}, fmt.Errorf("message %d at offset %d: %w", rep.messages, start, err)
		}
		rep.messages++
		rep.unknown += len(m.Unknown())
		reencoded = wire.AppendDelimited(reencoded, m)
	}
	rep.canonical = bytes.Equal(reencoded, payload)
	return rep, nil
}
