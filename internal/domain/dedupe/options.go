// Package dedupe groups submissions into canonical matches.
package dedupe

import (
	"time"

	"github.com/okian/matchboard/pkg/logger"
)

// Option applies a configuration option to the Deduper.
type Option func(*Deduper)

// WithBucketWidth sets the fixed time bucket width used for grouping.
func WithBucketWidth(width time.Duration) Option {
	return func(d *Deduper) {
		if width > 0 {
			d.bucketWidth = width
		}
	}
}

// WithLogger sets a custom logger for ambiguity warnings.
func WithLogger(l logger.Logger) Option {
	return func(d *Deduper) {
		if l != nil {
			d.logger = l
		}
	}
}
