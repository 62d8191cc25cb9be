package core

import "time"

// Clock measures elapsed wall time for a frame. Update should be called
// just before reading Elapsed. A clock that was never started reports zero.
type Clock struct {
	startTime time.Time
	elapsed   time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Start resets elapsed time and begins measuring.
func (c *Clock) Start() {
	c.startTime = time.Now()
	c.elapsed = 0
}

// Update refreshes the elapsed time. Has no effect on non-started clocks.
func (c *Clock) Update() {
	if !c.startTime.IsZero() {
		c.elapsed = time.Since(c.startTime)
	}
}

// Stop halts measurement without resetting elapsed time.
func (c *Clock) Stop() {
	c.startTime = time.Time{}
}

// Elapsed returns the measured time in seconds.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}
