// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCleanupStackReverseOrder(t *testing.T) {
	c := qt.New(t)

	var stack cleanupStack
	var released []string
	for _, name := range []string{"device", "swapchain", "renderPass"} {
		name := name
		stack.push(name, func() {
			released = append(released, name)
		})
	}

	c.Assert(stack.order(), qt.DeepEquals, []string{"device", "swapchain", "renderPass"})

	stack.run()
	c.Assert(released, qt.DeepEquals, []string{"renderPass", "swapchain", "device"})
}

func TestCleanupStackRunTwice(t *testing.T) {
	c := qt.New(t)

	var stack cleanupStack
	count := 0
	stack.push("buffer", func() { count++ })

	stack.run()
	stack.run()
	c.Assert(count, qt.Equals, 1)
	c.Assert(stack.order(), qt.HasLen, 0)
}

func TestCleanupStackEmptyRun(t *testing.T) {
	var stack cleanupStack
	stack.run() // must not panic
}
