package coordinator

import (
	"context"
	"sync"
)

// Channels is the signaling surface between the sync pipeline and the
// downstream coordinator. Announcements coalesce: a consumer that is
// busy sees at most one pending wakeup no matter how many blocks were
// committed in the meantime.
type Channels struct {
	mu           sync.Mutex
	newBurnBlock chan struct{}
	stopped      bool
}

func NewChannels() *Channels {
	return &Channels{
		newBurnBlock: make(chan struct{}, 1),
	}
}

// AnnounceNewBurnBlock signals that another burnchain block has been
// committed. Returns false once the channels are stopped, which the
// commit stage treats as a terminal shutdown condition.
func (c *Channels) AnnounceNewBurnBlock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	select {
	case c.newBurnBlock <- struct{}{}:
	default:
		// A wakeup is already pending.
	}
	return true
}

// WaitForNewBurnBlock blocks until an announcement arrives, the
// channels are stopped, or the context is done. Returns false when no
// more announcements will ever arrive.
func (c *Channels) WaitForNewBurnBlock(ctx context.Context) bool {
	select {
	case _, ok := <-c.newBurnBlock:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (c *Channels) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.newBurnBlock)
}

func (c *Channels) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
