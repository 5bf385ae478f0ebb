package core

import "sync/atomic"

// Trigger is a level-sensitive interrupt line. It asserts while the
// engine's enable bit and synchronized busy flag are both set and deasserts
// as soon as either drops; there is no latch to acknowledge. The level is
// re-evaluated on every host tick of the owning register block.
type Trigger struct {
	level  uint32
	notify func(asserted bool)
}

// Asserted reports the current line level. Safe from any goroutine.
func (t *Trigger) Asserted() bool {
	return atomic.LoadUint32(&t.level) != 0
}

// Notify registers a callback fired from the host tick whenever the line
// changes level. One callback per trigger; registering replaces the
// previous one. The callback runs on the host tick goroutine and must not
// block.
func (t *Trigger) Notify(fn func(asserted bool)) {
	t.notify = fn
}

func (t *Trigger) set(level bool) {
	var v uint32
	if level {
		v = 1
	}
	if atomic.SwapUint32(&t.level, v) == v {
		return
	}
	if t.notify != nil {
		t.notify(level)
	}
}
