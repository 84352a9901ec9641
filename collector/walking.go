package collector

import (
	"time"

	"balgil/core"
)

const (
	// WalkingInterval is the minimum spacing between buffered points
	WalkingInterval = time.Second
	// WalkingBufferSize caps the buffer at one minute of points
	WalkingBufferSize = 60
	// DefaultApproachSeconds is used when ExtractApproachPath gets no window
	DefaultApproachSeconds = 15
)

// AddWalkingPoint buffers p unless the previous point is less than
// WalkingInterval old. The point is stamped with the collector's clock.
// It reports whether p was kept.
func (c *Collector) AddWalkingPoint(p core.Point) bool {
	c.walkMu.Lock()
	defer c.walkMu.Unlock()

	now := c.now()
	if !c.lastWalking.IsZero() && now.Sub(c.lastWalking) < WalkingInterval {
		return false
	}

	p.Timestamp = now
	c.walking = append(c.walking, p)
	c.lastWalking = now

	if len(c.walking) > WalkingBufferSize {
		c.walking = append(c.walking[:0:0], c.walking[len(c.walking)-WalkingBufferSize:]...)
	}
	return true
}

// ExtractApproachPath returns the points from the last seconds and empties
// the buffer.
func (c *Collector) ExtractApproachPath(seconds int) []core.Point {
	if seconds <= 0 {
		seconds = DefaultApproachSeconds
	}

	c.walkMu.Lock()
	defer c.walkMu.Unlock()

	cutoff := c.now().Add(-time.Duration(seconds) * time.Second)
	recent := make([]core.Point, 0, len(c.walking))
	for _, p := range c.walking {
		if !p.Timestamp.Before(cutoff) {
			recent = append(recent, p)
		}
	}

	c.walking = nil
	c.lastWalking = time.Time{}
	return recent
}

// ResetWalkingBuffer empties the buffer, typically when navigation starts
func (c *Collector) ResetWalkingBuffer() {
	c.walkMu.Lock()
	defer c.walkMu.Unlock()
	c.walking = nil
	c.lastWalking = time.Time{}
}

// WalkingBufferLen returns the number of buffered points
func (c *Collector) WalkingBufferLen() int {
	c.walkMu.Lock()
	defer c.walkMu.Unlock()
	return len(c.walking)
}
