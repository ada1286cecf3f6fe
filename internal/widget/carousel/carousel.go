// Package carousel rotates a display strip of participant tiles. Fixed
// tiles stay visible in every frame; the remaining tiles cycle through in
// groups on a timer. The engine is independent of the chat session.
package carousel

import (
	"context"
	"sync"
	"time"
)

const (
	// defaultGroupSize is the number of tiles visible at once.
	defaultGroupSize = 10
	// defaultInterval is the rotation period.
	defaultInterval = 5 * time.Second
	// minInterval clamps host-provided rotation periods.
	minInterval = 1500 * time.Millisecond
	// fadeGuard is the brief pause before a frame swap so the host surface
	// can fade the strip out.
	fadeGuard = 260 * time.Millisecond
)

// Tile is one strip entry. Fixed tiles are visible in every frame.
type Tile struct {
	ID    string
	Fixed bool
}

// Options configures a strip.
type Options struct {
	// GroupSize is the number of tiles visible at once. Values below 1
	// fall back to the default.
	GroupSize int
	// Interval is the rotation period, clamped to a floor.
	Interval time.Duration
	// ReducedMotion disables rotation entirely.
	ReducedMotion bool
}

// Carousel computes visible frames over a tile strip.
type Carousel struct {
	tiles     []Tile
	fixed     []int
	rotatable []int
	groupSize int
	interval  time.Duration
	disabled  bool

	mu    sync.Mutex
	group int
}

// New builds a strip over tiles. The strip is disabled, meaning every tile
// stays visible and Run is a no-op, when all tiles fit in one group, when
// too few tiles rotate to fill a second frame, or when reduced motion is
// requested.
func New(tiles []Tile, opts Options) *Carousel {
	groupSize := opts.GroupSize
	if groupSize < 1 {
		groupSize = defaultGroupSize
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	if interval < minInterval {
		interval = minInterval
	}

	c := &Carousel{
		tiles:     tiles,
		groupSize: groupSize,
		interval:  interval,
	}
	for i, tile := range tiles {
		if tile.Fixed {
			c.fixed = append(c.fixed, i)
		} else {
			c.rotatable = append(c.rotatable, i)
		}
	}

	c.disabled = len(tiles) <= groupSize ||
		opts.ReducedMotion ||
		len(c.rotatable) <= c.visibleRotatable()
	return c
}

// visibleRotatable is the rotating window width: whatever group room the
// fixed tiles leave, but at least one slot.
func (c *Carousel) visibleRotatable() int {
	width := c.groupSize - len(c.fixed)
	if width < 1 {
		width = 1
	}
	return width
}

// Disabled reports whether the strip rotates at all.
func (c *Carousel) Disabled() bool {
	return c.disabled
}

// Groups returns the number of distinct frames the rotatable tiles cycle
// through. A disabled strip has a single frame.
func (c *Carousel) Groups() int {
	if c.disabled {
		return 1
	}
	width := c.visibleRotatable()
	return (len(c.rotatable) + width - 1) / width
}

// Interval returns the effective rotation period.
func (c *Carousel) Interval() time.Duration {
	return c.interval
}

// Frame returns the currently visible tile indexes. A disabled strip shows
// every tile.
func (c *Carousel) Frame() map[int]bool {
	visible := make(map[int]bool)
	if c.disabled {
		for i := range c.tiles {
			visible[i] = true
		}
		return visible
	}

	for _, i := range c.fixed {
		visible[i] = true
	}

	c.mu.Lock()
	group := c.group
	c.mu.Unlock()

	width := c.visibleRotatable()
	base := group * width
	for offset := 0; offset < width; offset++ {
		visible[c.rotatable[(base+offset)%len(c.rotatable)]] = true
	}
	return visible
}

// Advance steps to the next frame, wrapping after the last group.
func (c *Carousel) Advance() {
	if c.disabled {
		return
	}
	groups := c.Groups()
	c.mu.Lock()
	c.group = (c.group + 1) % groups
	c.mu.Unlock()
}

// Run rotates the strip until ctx ends, invoking apply with each new frame
// after a short fade guard. The initial frame is applied immediately. Run
// returns at once for a disabled strip after applying the static frame.
func (c *Carousel) Run(ctx context.Context, apply func(visible map[int]bool)) {
	apply(c.Frame())
	if c.disabled {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			guard := time.NewTimer(fadeGuard)
			select {
			case <-ctx.Done():
				guard.Stop()
				return
			case <-guard.C:
			}
			c.Advance()
			apply(c.Frame())
		}
	}
}
