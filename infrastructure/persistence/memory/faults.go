// Package memory provides in-process implementations of the store ports.
// They back the development profile and every service test, and let a
// test make any single method fail with SetError.
package memory

import "sync"

// faults records configured per-method errors and call counts.
// The zero value is ready to use.
type faults struct {
	mu           sync.Mutex
	shouldFailOn map[string]error
	calls        map[string]int
}

// SetError configures the store to return err for a specific method.
// Useful for testing error handling in services.
func (f *faults) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFailOn == nil {
		f.shouldFailOn = make(map[string]error)
	}
	f.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (f *faults) ClearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shouldFailOn = nil
}

// Calls returns how many times method was invoked, failed calls included.
func (f *faults) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// check records the call and returns the configured error, if any
func (f *faults) check(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
	return f.shouldFailOn[method]
}
