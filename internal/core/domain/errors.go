package domain

import "go.trai.ch/zerr"

var (
	// ErrResolution is returned when no candidate file matches a specifier.
	ErrResolution = zerr.New("module resolution failed")

	// ErrCircular is returned when a dependency cycle is detected and the
	// circular policy is set to error.
	ErrCircular = zerr.New("circular dependency detected")

	// ErrCompilation is returned when the compiler reports errors for a module.
	ErrCompilation = zerr.New("compilation failed")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = zerr.New("operation timed out")

	// ErrResourceExhausted is returned when a resource ceiling is breached
	// and eviction cannot restore headroom.
	ErrResourceExhausted = zerr.New("resource budget exhausted")

	// ErrBundle aggregates every compile error found across a bundle closure.
	ErrBundle = zerr.New("bundle failed")

	// ErrModuleNotFound is returned when a requested module is not registered.
	ErrModuleNotFound = zerr.New("module not found")

	// ErrDuplicateModule is returned when registering an id that already exists.
	ErrDuplicateModule = zerr.New("module already registered")

	// ErrUnsupportedFormat is returned when a bundle format other than the
	// supported one is requested without an explicit override.
	ErrUnsupportedFormat = zerr.New("unsupported bundle format")

	// ErrBreakerOpen is returned when a circuit breaker rejects an operation
	// without attempting I/O.
	ErrBreakerOpen = zerr.New("circuit breaker open")

	// ErrShutdown is returned for operations submitted after shutdown began.
	ErrShutdown = zerr.New("system is shutting down")
)
