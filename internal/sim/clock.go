// Package sim drives the yard: a logical clock, a tick loop, a command inbox
// and the published frame.
package sim

import "math"

// Clock tracks simulated seconds. Elapsed never decreases. Without looping
// it stops at the end of the first day; with looping only TimeOfDay wraps.
type Clock struct {
	elapsed   float64
	dayLength float64
	loop      bool
}

// NewClock returns a clock at zero. dayLength <= 0 means 86400 seconds.
func NewClock(dayLength float64, loop bool) *Clock {
	if dayLength <= 0 {
		dayLength = 86400
	}
	return &Clock{dayLength: dayLength, loop: loop}
}

// Advance moves the clock forward by delta seconds and returns the amount
// actually applied, which is smaller than delta at the day boundary.
func (c *Clock) Advance(delta float64) float64 {
	if delta <= 0 || math.IsNaN(delta) {
		return 0
	}
	if !c.loop {
		next := math.Min(c.elapsed+delta, c.dayLength)
		applied := next - c.elapsed
		c.elapsed = next
		return applied
	}
	c.elapsed += delta
	return delta
}

// Elapsed returns the simulated seconds since start.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// TimeOfDay returns the position within the current day.
func (c *Clock) TimeOfDay() float64 {
	if !c.loop {
		return c.elapsed
	}
	return math.Mod(c.elapsed, c.dayLength)
}

// Day returns the zero-based day number.
func (c *Clock) Day() int {
	if !c.loop {
		return 0
	}
	return int(c.elapsed / c.dayLength)
}

// AtDayEnd reports whether a non-looping clock has reached its cap.
func (c *Clock) AtDayEnd() bool {
	return !c.loop && c.elapsed >= c.dayLength
}
