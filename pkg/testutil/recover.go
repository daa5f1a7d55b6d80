package testutil

// Recover runs f and returns the value from recover(), or nil if f did not
// panic.
func Recover(f func()) (r any) {
	defer func() { r = recover() }()
	f()
	return
}
