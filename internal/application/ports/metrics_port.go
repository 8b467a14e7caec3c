package ports

import "time"

// Metrics receives counters from the use cases. Adapters decide where they go.
type Metrics interface {
	BuildFinished(result string, quantity int, elapsed time.Duration)
	PartsConsumed(units int)
	LedgerWritten(txType string, units int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) BuildFinished(string, int, time.Duration) {}
func (NopMetrics) PartsConsumed(int)                        {}
func (NopMetrics) LedgerWritten(string, int)                {}
