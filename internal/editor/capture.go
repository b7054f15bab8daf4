package editor

import "github.com/rendis/attackchain/internal/interaction"

// deferredCapture queues host acquire/release calls made by the gesture
// controller so they run after the editor lock is released. A host
// capturer may therefore call back into the Editor.
type deferredCapture struct {
	host    interaction.Capturer
	pending []func()
}

func (d *deferredCapture) Acquire() func() {
	var release func()
	d.pending = append(d.pending, func() { release = d.host.Acquire() })
	return func() {
		d.pending = append(d.pending, func() {
			if release != nil {
				release()
			}
		})
	}
}

// take returns and clears the queued calls. Callers hold e.mu.
func (d *deferredCapture) take() []func() {
	ops := d.pending
	d.pending = nil
	return ops
}

// unlock releases e.mu and then runs queued capture calls in order.
func (e *Editor) unlock() {
	var ops []func()
	if e.capture != nil {
		ops = e.capture.take()
	}
	e.mu.Unlock()
	for _, op := range ops {
		op()
	}
}
