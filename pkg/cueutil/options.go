// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize bounds the input accepted by the parse helpers (5 MiB).
const DefaultMaxFileSize int64 = 5 << 20

type (
	// Option configures ParseAndDecode and Validate.
	Option func(*options)

	options struct {
		filename    string
		concrete    bool
		maxFileSize int64
	}
)

func defaultOptions() options {
	return options{
		concrete:    true,
		maxFileSize: DefaultMaxFileSize,
	}
}

// WithFilename sets the file name used in error messages.
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// WithConcrete controls whether validation requires every value to be concrete.
func WithConcrete(concrete bool) Option {
	return func(o *options) { o.concrete = concrete }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}
