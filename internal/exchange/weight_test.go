package exchange

import (
	"testing"
	"time"
)

func TestWeightBudget_ReserveWithinCapDoesNotBlock(t *testing.T) {
	w := newWeightBudget()
	done := make(chan struct{})
	go func() {
		w.reserve(weightCap - 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reserve blocked despite being within the cap")
	}
	if w.used != weightCap-1 {
		t.Fatalf("used = %d, want %d", w.used, weightCap-1)
	}
}

func TestWeightBudget_RollIfElapsedResetsCounter(t *testing.T) {
	w := newWeightBudget()
	w.used = weightCap
	w.windowStart = time.Now().Add(-weightWindow - time.Second)

	w.rollIfElapsed(time.Now())

	if w.used != 0 {
		t.Fatalf("used = %d, want 0 after window roll", w.used)
	}
}

func TestWeightBudget_ObserveReplacesCounter(t *testing.T) {
	w := newWeightBudget()
	w.used = 100
	w.observe(500)
	if w.used != 500 {
		t.Fatalf("used = %d, want 500", w.used)
	}
}

func TestWeightBudget_ObserveRollsStaleWindowFirst(t *testing.T) {
	w := newWeightBudget()
	w.used = 5000
	w.windowStart = time.Now().Add(-weightWindow - time.Second)

	w.observe(42)

	if w.used != 42 {
		t.Fatalf("used = %d, want 42", w.used)
	}
	if time.Since(w.windowStart) >= weightWindow {
		t.Fatal("windowStart was not reset by observe")
	}
}
