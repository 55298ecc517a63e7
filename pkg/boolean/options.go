package boolean

import "log/slog"

// DefaultMaxAttempts is the number of passes, the first on the exact input
// and the rest perturbed, before a degenerate configuration is reported.
const DefaultMaxAttempts = 8

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger for one kernel, overriding SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = l
	}
}

// WithWorkers bounds the goroutines used for crossing tests and patch
// classification. If n <= 0, GOMAXPROCS is used.
func WithWorkers(n int) Option {
	return func(k *Kernel) {
		k.workers = n
	}
}

// WithMaxAttempts sets how many passes are made before giving up on a
// degenerate configuration. Values below 1 are treated as 1.
func WithMaxAttempts(n int) Option {
	return func(k *Kernel) {
		k.maxAttempts = max(n, 1)
	}
}

// WithSkipSolidCheck disables the solidity check on inputs. Invalid input
// then surfaces later as an intersection or stitching error.
func WithSkipSolidCheck() Option {
	return func(k *Kernel) {
		k.skipSolidCheck = true
	}
}
