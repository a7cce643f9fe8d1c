// Package clock provides the deterministic tick source driving the
// simulation.
//
// All engine time is expressed in discrete ticks. The clock advances only
// when the session orchestrator steps the simulation; no component reads
// wall-clock time to make gameplay decisions, which keeps recorded input
// logs replayable.
package clock

// Tick is a discrete simulation time step.
type Tick uint64

// Clock is a monotonic tick counter.
type Clock struct {
	current Tick
}

// New creates a clock positioned at the given start tick.
func New(start Tick) *Clock {
	return &Clock{current: start}
}

// Current returns the tick the simulation is currently on.
func (c *Clock) Current() Tick {
	if c == nil {
		return 0
	}
	return c.current
}

// Advance moves the clock forward by one tick and returns the new tick.
func (c *Clock) Advance() Tick {
	c.current++
	return c.current
}
