// Package sequence provides the generation counter used to discard results
// of superseded requests.
package sequence

import "sync/atomic"

// Counter hands out strictly increasing generations. The zero value is ready
// to use and reports generation 0 as current.
type Counter struct {
	n atomic.Uint64
}

// Next starts a new generation and returns it. Every earlier generation
// becomes stale.
func (c *Counter) Next() uint64 {
	return c.n.Add(1)
}

// Current returns the latest generation handed out.
func (c *Counter) Current() uint64 {
	return c.n.Load()
}

// IsCurrent reports whether gen is still the latest generation.
func (c *Counter) IsCurrent(gen uint64) bool {
	return c.n.Load() == gen
}
