package core

import (
	"runtime"
	"time"
)

// Domain drives one clock domain: a background goroutine that calls the
// tick function over and over until stopped. Everything the engines promise
// about single-goroutine ticking holds as long as each engine's Tick is
// handed to exactly one Domain.
//
// A positive period paces the ticks with a timer. A zero period free-runs,
// yielding to the scheduler between ticks; that mode exists for simulation
// rigs where wall-clock pacing is noise.
type Domain struct {
	name   string
	period time.Duration
	tick   func()

	// Stop channel for graceful shutdown
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewDomain creates the domain and starts its goroutine immediately.
func NewDomain(name string, period time.Duration, tick func()) *Domain {
	d := &Domain{
		name:     name,
		period:   period,
		tick:     tick,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	go d.run()

	return d
}

func (d *Domain) run() {
	defer close(d.doneChan)

	DebugPrintln("[domain] " + d.name + " running")

	if d.period <= 0 {
		for {
			select {
			case <-d.stopChan:
				return
			default:
			}
			d.tick()
			runtime.Gosched()
		}
	}

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// Stop halts the goroutine and waits for the tick in flight, if any, to
// finish. Safe to call once; a second call panics on the closed channel,
// same as closing any channel twice.
func (d *Domain) Stop() {
	close(d.stopChan)
	<-d.doneChan
	DebugPrintln("[domain] " + d.name + " stopped")
}
