package session

import (
	"context"
	"errors"
	"time"

	"github.com/vedran77/dermacheck/internal/domain"
)

// enqueue appends o to the work queue. Blocking intents raise the loading
// flag right away so it is visible before the worker picks them up.
func (c *Controller) enqueue(o *op) <-chan Result {
	o.result = make(chan Result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		o.result <- Result{Err: domain.ErrClosed}
		return o.result
	}
	o.epoch = c.epoch
	c.queue = append(c.queue, o)
	if o.blocking {
		c.busy++
		c.publishLocked(*c.state.Load())
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return o.result
}

func (c *Controller) work() {
	defer close(c.done)

	for {
		o, ok := c.next()
		if !ok {
			select {
			case <-c.wake:
				continue
			case <-c.ctx.Done():
				return
			}
		}
		c.execute(o)
	}
}

func (c *Controller) next() (*op, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || len(c.queue) == 0 {
		return nil, false
	}
	o := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return o, true
}

func (c *Controller) execute(o *op) {
	start := time.Now()

	c.mu.Lock()
	stale := o.epoch != c.epoch
	c.mu.Unlock()

	var res Result
	if stale {
		res = Result{Err: ErrSuperseded}
	} else {
		ctx, cancel := context.WithTimeout(c.ctx, c.opTimeout)
		res = o.run(ctx, o)
		cancel()
	}

	if o.blocking && !o.released {
		c.mu.Lock()
		c.release(o)
		if !c.closed {
			c.publishLocked(*c.state.Load())
		}
		c.mu.Unlock()
	}

	c.metrics.RecordIntent(o.name, outcome(res.Err), time.Since(start))
	o.result <- res
}

// commit applies fn and publishes n as one transition on behalf of o. It
// reports false, leaving the state alone, when o belongs to a session that
// has since been logged out or the controller is closed.
func (c *Controller) commit(o *op, fn func(*domain.SessionState), n *note) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.release(o)
	return c.commitLocked(o.epoch, fn, n)
}

func (c *Controller) commitLocked(epoch uint64, fn func(*domain.SessionState), n *note) bool {
	if c.closed {
		return false
	}
	if epoch != c.epoch {
		// loading may still have to drop
		c.publishLocked(*c.state.Load())
		return false
	}

	if n != nil {
		c.slot.Publish(n.kind, n.message)
		c.metrics.RecordNotification(string(n.kind))
	}

	next := *c.state.Load()
	if fn != nil {
		fn(&next)
	}
	c.publishLocked(next)
	return true
}

// release drops o's share of the busy counter. It must be called with mu held.
func (c *Controller) release(o *op) {
	if o.blocking && !o.released {
		c.busy--
		o.released = true
	}
}

// adjustBusy tracks non-blocking work that still reports progress, such as
// avatar uploads.
func (c *Controller) adjustBusy(inProgress bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if inProgress {
		c.busy++
	} else if c.busy > 0 {
		c.busy--
	}
	if !c.closed {
		c.publishLocked(*c.state.Load())
	}
}

// publishLocked stamps next with the derived fields, swaps it in and fans it
// out to watchers. It must be called with mu held.
func (c *Controller) publishLocked(next domain.SessionState) {
	cur := c.state.Load()
	next.Version = cur.Version + 1
	next.Loading = c.busy > 0
	next.PendingNotification = c.slot.Pending()
	next.Profile = next.Profile.Clone()

	c.state.Store(&next)
	c.metrics.SetLoading(next.Loading)

	for ch := range c.watchers {
		// latest wins for slow readers
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, domain.ErrClosed):
		return "closed"
	default:
		return string(domain.KindOf(err))
	}
}
