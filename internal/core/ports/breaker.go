package ports

// BreakerClass names one class of external dependency guarded by its own
// circuit breaker.
type BreakerClass string

const (
	// BreakerFilesystem guards file reads, stats and manifest lookups.
	BreakerFilesystem BreakerClass = "filesystem"
	// BreakerCompiler guards Compiler invocations.
	BreakerCompiler BreakerClass = "compiler"
)

// BreakerTransition is one externally observable state change.
type BreakerTransition struct {
	Class string `json:"class"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Breaker wraps each external dependency class in a circuit breaker: after
// repeated failures it fails fast for a cooldown, then half-opens to probe.
type Breaker interface {
	// Do runs fn under the breaker for the given class. When the breaker is
	// open it returns domain.ErrBreakerOpen without invoking fn.
	Do(class BreakerClass, fn func() error) error

	// States returns the current state name per class.
	States() map[string]string

	// Transitions returns the observed state transitions in order.
	Transitions() []BreakerTransition

	// Reset recreates every breaker in the closed state.
	Reset()
}
