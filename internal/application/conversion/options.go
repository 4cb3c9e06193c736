package conversion

import (
	"time"

	"github.com/shopspring/decimal"
)

// Options tunes retry bounds and packaging defaults
type Options struct {
	// MaxSequenceAttempts bounds retries after a duplicate sequence number
	MaxSequenceAttempts int
	// TransientRetryBackoff is the wait before the single retry of a transient storage failure
	TransientRetryBackoff time.Duration
	// DefaultBreakagePercent applies when an item or preview carries no breakage margin
	DefaultBreakagePercent decimal.Decimal
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		MaxSequenceAttempts:    5,
		TransientRetryBackoff:  50 * time.Millisecond,
		DefaultBreakagePercent: decimal.NewFromInt(10),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxSequenceAttempts <= 0 {
		o.MaxSequenceAttempts = d.MaxSequenceAttempts
	}
	if o.TransientRetryBackoff <= 0 {
		o.TransientRetryBackoff = d.TransientRetryBackoff
	}
	// zero is a legitimate margin
	if o.DefaultBreakagePercent.IsNegative() {
		o.DefaultBreakagePercent = d.DefaultBreakagePercent
	}
	return o
}
