package engine

import (
	"testing"
	"time"
)

func TestStepTurnFiresCallback(t *testing.T) {
	tm, _ := newTestManager(t, ClearDirect)
	eng := NewEngine(tm, time.Second)

	var gotTurn int
	var gotEvents int
	eng.OnTurn = func(turn int, events []Event) {
		gotTurn = turn
		gotEvents = len(events)
	}

	turn, events := eng.StepTurn()
	if turn != 1 {
		t.Errorf("StepTurn returned turn %d, want 1", turn)
	}
	if gotTurn != turn || gotEvents != len(events) {
		t.Errorf("callback saw turn %d / %d events, step returned %d / %d",
			gotTurn, gotEvents, turn, len(events))
	}
}

func TestRunStopsCleanly(t *testing.T) {
	tm, _ := newTestManager(t, ClearDirect)
	eng := NewEngine(tm, time.Millisecond)

	done := make(chan struct{})
	go func() {
		eng.Run()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	eng.Stop()
	eng.Stop() // second call must be a no-op

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if tm.Turn() == 0 {
		t.Error("no turns ran before Stop")
	}
}
