package fishing

import (
	"sync"
	"testing"
)

func TestBaitLedgerRoundRobin(t *testing.T) {
	l := NewBaitLedger([]string{"1", "2", "3"}, 2)
	want := []string{"1", "2", "3", "1", "2", "3"}
	for i, w := range want {
		key, ok := l.Next()
		if !ok {
			t.Fatalf("draw %d: ledger drained early", i)
		}
		if key != w {
			t.Fatalf("draw %d = %s, want %s", i, key, w)
		}
	}
	if !l.Exhausted() {
		t.Fatalf("6 draws from 3x2 should exhaust the ledger, remaining=%d", l.Remaining())
	}
	if _, ok := l.Next(); ok {
		t.Fatalf("draw after exhaustion succeeded")
	}
	if l.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", l.Remaining())
	}
}

func TestBaitLedgerSkipsDrainedKeys(t *testing.T) {
	l := NewBaitLedger([]string{"1", "2"}, 2)
	l.Next() // 1
	l.Next() // 2
	l.Next() // 1 (now empty)
	key, ok := l.Next()
	if !ok || key != "2" {
		t.Fatalf("draw = %s/%v, want 2 from the only non-empty slot", key, ok)
	}
	if !l.Exhausted() {
		t.Fatalf("expected exhaustion")
	}
}

func TestBaitLedgerNeverNegative(t *testing.T) {
	l := NewBaitLedger([]string{"1"}, 1)
	l.Next()
	for i := 0; i < 3; i++ {
		l.Next()
	}
	if rem := l.RemainingFor("1"); rem != 0 {
		t.Fatalf("remaining for key 1 = %d, want 0", rem)
	}
}

func TestBaitLedgerConcurrentReads(t *testing.T) {
	// Status readers poll the ledger while the session goroutine draws;
	// under -race this catches any unsynchronized access.
	l := NewBaitLedger([]string{"1", "2", "3", "4"}, 100)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = l.Remaining()
				_ = l.Exhausted()
				_ = l.RemainingFor("2")
			}
		}
	}()
	for i := 0; i < 400; i++ {
		l.Next()
	}
	close(done)
	wg.Wait()
	if !l.Exhausted() {
		t.Fatalf("400 draws from 4x100 should exhaust the ledger, remaining=%d", l.Remaining())
	}
}

func TestBaitLedgerRemainingFor(t *testing.T) {
	l := NewBaitLedger([]string{"1", "2"}, 200)
	l.Next()
	if rem := l.RemainingFor("1"); rem != 199 {
		t.Fatalf("remaining for 1 = %d, want 199", rem)
	}
	if rem := l.RemainingFor("2"); rem != 200 {
		t.Fatalf("remaining for 2 = %d, want 200", rem)
	}
	if rem := l.RemainingFor("9"); rem != 0 {
		t.Fatalf("unknown key remaining = %d, want 0", rem)
	}
}
