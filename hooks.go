package doccache

import "time"

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the cache calls them on
// foreground paths. Wrap slow sinks with hooks/async.
type Hooks interface {
	// A logically expired record was deleted by a Get or Refresh.
	ExpiredOnRead(key string)

	// The sweep scheduler dispatched a background deletion for records
	// expiring at or before cutoff.
	SweepStarted(cutoff time.Time)

	// A dispatched sweep finished.
	SweepCompleted(cutoff time.Time, took time.Duration)

	// A dispatched sweep failed. The error is never surfaced to callers.
	SweepFailed(cutoff time.Time, err error)

	// A sweep was due but another one was still running in this process.
	SweepCoalesced()

	// A typed read found bytes its codec could not decode and removed them.
	// reason ∈ {"value_decode"}
	SelfHeal(key, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ExpiredOnRead(string)                    {}
func (NopHooks) SweepStarted(time.Time)                  {}
func (NopHooks) SweepCompleted(time.Time, time.Duration) {}
func (NopHooks) SweepFailed(time.Time, error)            {}
func (NopHooks) SweepCoalesced()                         {}
func (NopHooks) SelfHeal(string, string)                 {}
