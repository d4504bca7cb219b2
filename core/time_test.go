package core_test

import (
	"testing"
	"time"

	"github.com/devblok/mirage/core"
)

func TestElapsed(t *testing.T) {
	clock := core.NewTime(core.TimeConfiguration{})

	first := clock.Elapsed()
	if first < 0 {
		t.Errorf("elapsed time went backwards: %f", first)
	}

	time.Sleep(5 * time.Millisecond)

	second := clock.Elapsed()
	if second <= first {
		t.Errorf("elapsed time did not advance: %f <= %f", second, first)
	}
}
