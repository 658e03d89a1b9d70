package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the command line flags. Flags given on the command line
// win over values from the file.
type fileConfig struct {
	ProtoPaths       []string `toml:"proto_paths"`
	Protos           []string `toml:"protos"`
	Message          string   `toml:"message"`
	Zstd             bool     `toml:"zstd"`
	Delimited        bool     `toml:"delimited"`
	RequireCanonical bool     `toml:"require_canonical"`
	StrictWire       bool     `toml:"strict_wire"`
	KeepUnknown      bool     `toml:"keep_unknown"`
	MaxDepth         int      `toml:"max_depth"`
	MaxPayload       int64    `toml:"max_payload"`
	Verbose          bool     `toml:"verbose"`
}

// loadConfig applies the keys present in the TOML file at path to opts.
func loadConfig(path string, opts *options) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load pbcheck config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load pbcheck config: unknown key %s", undecoded[0])
	}

	if meta.IsDefined("proto_paths") {
		opts.protoPaths = normalizeList(raw.ProtoPaths)
	}
	if meta.IsDefined("protos") {
		opts.protos = normalizeList(raw.Protos)
	}
	if meta.IsDefined("message") {
		opts.message = strings.TrimSpace(raw.Message)
	}
	if meta.IsDefined("zstd") {
		opts.zstd = raw.Zstd
	}
	if meta.IsDefined("delimited") {
		opts.delimited = raw.Delimited
	}
	if meta.IsDefined("require_canonical") {
		opts.requireCanonical = raw.RequireCanonical
	}
	if meta.IsDefined("strict_wire") {
		opts.decode.StrictWireType = raw.StrictWire
	}
	if meta.IsDefined("keep_unknown") {
		opts.decode.KeepUnknown = raw.KeepUnknown
	}
	if meta.IsDefined("max_depth") {
		if raw.MaxDepth <= 0 {
			return fmt.Errorf("parse max_depth: must be positive, got %d", raw.MaxDepth)
		}
		opts.decode.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("max_payload") {
		if raw.MaxPayload <= 0 {
			return fmt.Errorf("parse max_payload: must be positive, got %d", raw.MaxPayload)
		}
		opts.maxPayload = uint64(raw.MaxPayload)
	}
	if meta.IsDefined("verbose") {
		opts.verbose = raw.Verbose
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
