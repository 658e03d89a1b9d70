package wire

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMaxDepth bounds message nesting during decode.
const DefaultMaxDepth = 100

// Environment toggles read by DecodeOptionsFromEnv.
const (
	EnvMaxDepth    = "PBCODEC_MAX_DEPTH"
	EnvStrictWire  = "PBCODEC_STRICT_WIRE"
	EnvKeepUnknown = "PBCODEC_KEEP_UNKNOWN"
)

var nopLogger = zerolog.Nop()

// DecodeOptions controls optional decode behaviors. The zero value is ready to
// use and matches the defaults described on each field.
type DecodeOptions struct {
	// MaxDepth is the deepest embedded message, map entry or group the decoder
	// will enter. Zero means DefaultMaxDepth.
	MaxDepth int

	// StrictWireType: when true, a known field number arriving with a wire type
	// its binding cannot accept fails with ErrInvalidWireType. When false
	// (default), the occurrence is treated as an unknown field and skipped.
	StrictWireType bool

	// KeepUnknown: when true, the raw bytes of unknown fields are retained on
	// the message and written back, after all known fields, on encode.
	KeepUnknown bool

	// Logger receives trace events from the decode loop. Nil disables logging.
	Logger *zerolog.Logger
}

// DecodeOptionsFromEnv returns DecodeOptions seeded from the PBCODEC_*
// environment variables. Unset or malformed variables keep their defaults.
func DecodeOptionsFromEnv() DecodeOptions {
	var o DecodeOptions
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvMaxDepth))); err == nil && v > 0 {
		o.MaxDepth = v
	}
	if v, ok := parseBool(os.Getenv(EnvStrictWire)); ok {
		o.StrictWireType = v
	}
	if v, ok := parseBool(os.Getenv(EnvKeepUnknown)); ok {
		o.KeepUnknown = v
	}
	return o
}

func (o *DecodeOptions) maxDepth() int {
	if o == nil || o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

func (o *DecodeOptions) logger() *zerolog.Logger {
	if o == nil || o.Logger == nil {
		return &nopLogger
	}
	return o.Logger
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
