// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

// cleanupStack collects release functions in creation order so a
// pass manager can tear its resources down in exact reverse order.
// Every successful createX step pushes its own release.
type cleanupStack struct {
	entries []cleanupEntry
}

type cleanupEntry struct {
	name    string
	release func()
}

func (s *cleanupStack) push(name string, release func()) {
	s.entries = append(s.entries, cleanupEntry{name: name, release: release})
}

// run releases everything in reverse creation order and empties
// the stack, calling it twice is harmless.
func (s *cleanupStack) run() {
	for i := len(s.entries) - 1; i >= 0; i-- {
		s.entries[i].release()
	}
	s.entries = nil
}

// order returns the recorded creation order, newest last.
func (s *cleanupStack) order() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}
