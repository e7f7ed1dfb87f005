package cratedigger

import "github.com/daitomanabe/cratedigger/codec"

type options struct {
	logger *Logger
	codec  codec.Codec
	noMmap bool
}

func defaultOptions() options {
	return options{
		logger: NoopLogger(),
		codec:  codec.Default,
	}
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger installs a logger for open/index/scan diagnostics.
//
// If nil is passed, the no-op logger is kept.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCodec configures the codec used by JSON-producing helpers
// (MarshalSchema, record dumps).
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMmapDisabled forces Open to read the file into memory instead of
// mapping it. Useful on filesystems where mappings are unreliable.
func WithMmapDisabled() Option {
	return func(o *options) {
		o.noMmap = true
	}
}
