// Package testutil provides utilities shared by tests across the repo.
package testutil

// Cleanuper is the subset of [testing.TB] the utilities in this package need
// to register cleanup functions. Taking the interface instead of *testing.T
// lets the utilities themselves be tested with a fake.
type Cleanuper interface {
	Cleanup(func())
}
