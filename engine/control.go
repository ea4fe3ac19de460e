package engine

import (
	"os"
	"sync/atomic"
)

// Request is an out-of-band command for the event loop.
type Request int

const (
	// RequestDim forces an immediate dim.
	RequestDim Request = iota + 1
	// RequestBrighten forces an immediate brighten.
	RequestBrighten
	// RequestExit asks for graceful shutdown.
	RequestExit
)

func (r Request) String() string {
	switch r {
	case RequestDim:
		return "dim"
	case RequestBrighten:
		return "brighten"
	case RequestExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Controller funnels asynchronous requests into the event loop.
// Raising a request only records it and performs a non-blocking wake;
// it must never touch the display, the devices, or the idle watches,
// which are not safe to drive from a signal handler's goroutine while
// the loop may be mid-request on the same connection.
type Controller struct {
	wake    chan Request
	exiting atomic.Bool

	// terminate is the hard-exit escape hatch, replaceable in tests.
	terminate func(code int)
}

// NewController returns a controller ready to accept requests.
func NewController() *Controller {
	return &Controller{
		wake:      make(chan Request, 8),
		terminate: os.Exit,
	}
}

// Raise records req and wakes the loop. Safe to call concurrently with
// the engine; duplicate requests are tolerated. A second exit request
// terminates the process unconditionally, the escape hatch for when the
// graceful shutdown path itself hangs.
func (c *Controller) Raise(req Request) {
	if req == RequestExit && c.exiting.Swap(true) {
		c.terminate(0)
		return
	}
	select {
	case c.wake <- req:
	default:
		// loop is behind; dropping is fine, requests are idempotent
	}
}

// Requests is the channel the event loop drains. Each request is
// observed exactly once.
func (c *Controller) Requests() <-chan Request { return c.wake }
