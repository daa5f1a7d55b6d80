package testutil

// Set sets *p to v for the duration of a test, restoring the saved value on
// cleanup. It is how tests override package-level knobs like ui.NoColor.
func Set[T any](c Cleanuper, p *T, v T) {
	saved := *p
	*p = v
	c.Cleanup(func() { *p = saved })
}
