package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestHolder_UpdateLatest(t *testing.T) {
	var h Holder
	if got := h.Latest(); got.HeightMM != 0 || got.Velocity != 0 {
		t.Errorf("zero holder = %+v, want zero sample", got)
	}
	h.Update(Sample{HeightMM: 900, Velocity: -45})
	if got := h.Latest(); got.HeightMM != 900 || got.Velocity != -45 {
		t.Errorf("Latest() = %+v, want {900 -45}", got)
	}
}

func TestHolder_ConcurrentUpdates(t *testing.T) {
	// Push and pull paths race on the holder; a reader must always see a
	// matched pair, never one field from each writer.
	var h Holder
	var writers sync.WaitGroup
	for w := 0; w < 2; w++ {
		writers.Add(1)
		go func(w int) {
			defer writers.Done()
			for i := 0; i < 1000; i++ {
				// Writer 0 pairs 700 with 10, writer 1 pairs 800 with 20.
				h.Update(Sample{HeightMM: 700 + w*100, Velocity: int16(10 + w*10)})
			}
		}(w)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := h.Latest()
			if s.HeightMM == 0 {
				continue // not yet written
			}
			wantV := int16(10 + (s.HeightMM-700)/100*10)
			if s.Velocity != wantV {
				t.Errorf("torn sample: %+v", s)
				return
			}
		}
	}()

	writers.Wait()
	close(stop)
	<-readerDone
}

func TestStableCounter_FiresAtThreshold(t *testing.T) {
	c := NewStableCounter(3)
	c.Reset(700)
	for i := 0; i < 2; i++ {
		if c.Observe(700) {
			t.Fatalf("fired after %d equal samples, want 3", i+1)
		}
	}
	if !c.Observe(700) {
		t.Error("did not fire after 3 consecutive equal samples")
	}
}

func TestStableCounter_ResetsOnChange(t *testing.T) {
	c := NewStableCounter(3)
	c.Reset(700)
	c.Observe(700)
	c.Observe(700)
	if c.Observe(710) {
		t.Error("fired on a changed sample")
	}
	// Change resets the run; two more equal samples must not fire.
	c.Observe(710)
	if c.Observe(710) {
		t.Error("fired after only 2 equal samples following a change")
	}
	if !c.Observe(710) {
		t.Error("did not fire after 3 equal samples following a change")
	}
}

func TestStableCounter_Unseeded(t *testing.T) {
	// Without a seed the first observation only establishes the reference.
	c := NewStableCounter(3)
	if c.Observe(1000) {
		t.Error("fired on first observation")
	}
	c.Observe(1000)
	c.Observe(1000)
	if !c.Observe(1000) {
		t.Error("did not fire after 3 equal samples following the reference")
	}
}

func TestStableCounter_ThresholdOne(t *testing.T) {
	c := NewStableCounter(1)
	c.Reset(500)
	if !c.Observe(500) {
		t.Error("threshold 1 should fire on first equal sample")
	}
}

func TestWait_Elapses(t *testing.T) {
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestWait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, time.Hour); err == nil {
		t.Error("expected context error from cancelled Wait")
	}
}
