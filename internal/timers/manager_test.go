package timers

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestArmNoInputResetsOnRearm(t *testing.T) {
	m := New()
	var fired int32
	m.ArmNoInput(30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	time.Sleep(10 * time.Millisecond)
	m.ArmNoInput(30*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("expected rearm to reset the window, fired=%d", fired)
	}
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected exactly one fire after rearm window elapses, fired=%d", fired)
	}
}

func TestScheduleHangupCancelsPrior(t *testing.T) {
	m := New()
	var fired int32
	m.ScheduleHangup(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	m.ScheduleHangup(60*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("expected the first hangup timer to be cancelled, fired=%d", fired)
	}
	m.CancelHangup()
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("expected cancellation to suppress firing, fired=%d", fired)
	}
}

func TestCancelAllStopsEverything(t *testing.T) {
	m := New()
	var fired int32
	cb := func() { atomic.AddInt32(&fired, 1) }
	m.ArmNoInput(10*time.Millisecond, cb)
	m.ScheduleHangup(10*time.Millisecond, cb)
	m.ArmPlaybackWatchdog(cb)
	m.CancelAll()
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("expected no callbacks after CancelAll, fired=%d", fired)
	}
}
