package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestPostIsIdempotent(t *testing.T) {
	for _, e := range []Event{TimerComp0, TimerUnderflow, SensorReadDone, Boot, LinkTxDone, SensorWriteDone} {
		once := New()
		once.Post(e)
		twice := New()
		twice.Post(e)
		twice.Post(e)
		if once.Poll() != twice.Poll() {
			t.Fatalf("%v: once=%v twice=%v", e, once.Poll(), twice.Poll())
		}
	}
}

func TestClearOnlyRemovesOwnedBit(t *testing.T) {
	s := New()
	s.Post(Boot | LinkTxDone)
	s.Clear(Boot)
	if got := s.Poll(); got != LinkTxDone {
		t.Fatalf("Poll() = %v, want link_tx_done", got)
	}
}

func TestRepostDuringServicingIsObserved(t *testing.T) {
	s := New()
	s.Post(LinkTxDone)

	// Handler clears first, then the interrupt fires again mid-service.
	s.Clear(LinkTxDone)
	s.Post(LinkTxDone)

	if !s.Poll().Has(LinkTxDone) {
		t.Fatal("re-posted bit lost")
	}
}

func TestOpenResetsState(t *testing.T) {
	s := New()
	s.Post(Boot)
	s.Open()
	if s.Poll() != 0 {
		t.Fatalf("Poll() after Open = %v", s.Poll())
	}
	select {
	case <-s.Pending():
		t.Fatal("stale wake-up after Open")
	default:
	}
}

func TestConcurrentPostsFromManySources(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	evs := []Event{TimerComp0, TimerComp1, TimerUnderflow, SensorReadDone, Boot, LinkTxDone, SensorWriteDone}
	for _, e := range evs {
		wg.Add(1)
		go func(e Event) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Post(e)
			}
		}(e)
	}
	wg.Wait()
	want := Event(0)
	for _, e := range evs {
		want |= e
	}
	if s.Poll() != want {
		t.Fatalf("Poll() = %v, want %v", s.Poll(), want)
	}
}

func TestPendingWakesSleeper(t *testing.T) {
	s := New()
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.Post(TimerUnderflow)
	}()
	select {
	case <-s.Pending():
	case <-time.After(time.Second):
		t.Fatal("no wake-up after Post")
	}
}

func TestEventString(t *testing.T) {
	cases := map[Event]string{
		0:                            "none",
		Boot:                         "boot",
		TimerUnderflow | Boot:        "timer_uf|boot",
		Event(1 << 12):               "bit12",
		SensorReadDone.Lowest():      "sensor_read_done",
		(LinkTxDone | Boot).Lowest(): "boot",
	}
	for e, want := range cases {
		if got := e.String(); got != want {
			t.Fatalf("String(%#x) = %q, want %q", uint32(e), got, want)
		}
	}
}
