package app

// InvalidateBatchForTest runs the debounced watch callback directly.
// This is exported for testing purposes only.
func (a *App) InvalidateBatchForTest(paths []string) {
	a.invalidateBatch(paths)
}
