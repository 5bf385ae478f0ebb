package core

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitForTicks(t *testing.T, n *uint32, want uint32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadUint32(n) < want {
		if time.Now().After(deadline) {
			t.Fatalf("Domain made no progress: %d ticks, wanted %d", atomic.LoadUint32(n), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDomainFreeRun(t *testing.T) {
	var ticks uint32
	d := NewDomain("freerun", 0, func() {
		atomic.AddUint32(&ticks, 1)
	})

	waitForTicks(t, &ticks, 100)
	d.Stop()

	after := atomic.LoadUint32(&ticks)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadUint32(&ticks) != after {
		t.Error("Expected no ticks after Stop")
	}
}

func TestDomainPaced(t *testing.T) {
	var ticks uint32
	d := NewDomain("paced", time.Millisecond, func() {
		atomic.AddUint32(&ticks, 1)
	})

	waitForTicks(t, &ticks, 3)
	d.Stop()
}

func TestDomainStopWaitsForTickInFlight(t *testing.T) {
	var inTick uint32
	d := NewDomain("inflight", 0, func() {
		atomic.StoreUint32(&inTick, 1)
		time.Sleep(time.Millisecond)
		atomic.StoreUint32(&inTick, 0)
	})

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadUint32(&inTick) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Domain never entered a tick")
		}
		time.Sleep(100 * time.Microsecond)
	}

	d.Stop()
	if atomic.LoadUint32(&inTick) != 0 {
		t.Error("Expected Stop to return only after the tick in flight finished")
	}
}
