package fishing

import "sync"

// BaitLedger tracks per-key bait uses and hands out cast keys round-robin
// across the selected slots. Counters never go negative: an empty slot is
// skipped, and Next reports failure once every slot is empty. The ledger is
// safe for concurrent use so status readers can poll it while the session
// goroutine draws.
type BaitLedger struct {
	mu        sync.Mutex
	keys      []string
	remaining []int
	cursor    int
}

// NewBaitLedger charges every selected key with perKey uses.
func NewBaitLedger(keys []string, perKey int) *BaitLedger {
	l := &BaitLedger{
		keys:      append([]string(nil), keys...),
		remaining: make([]int, len(keys)),
	}
	for i := range l.remaining {
		l.remaining[i] = perKey
	}
	return l
}

// Next returns the next key with bait left and consumes one use of it.
// ok is false when every slot is exhausted; no counter is touched then.
func (l *BaitLedger) Next() (key string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for step := 0; step < len(l.keys); step++ {
		i := (l.cursor + step) % len(l.keys)
		if l.remaining[i] > 0 {
			l.remaining[i]--
			l.cursor = (i + 1) % len(l.keys)
			return l.keys[i], true
		}
	}
	return "", false
}

// Exhausted reports whether every selected slot is at zero.
func (l *BaitLedger) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.remaining {
		if r > 0 {
			return false
		}
	}
	return true
}

// Remaining sums the uses left across all slots.
func (l *BaitLedger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, r := range l.remaining {
		total += r
	}
	return total
}

// RemainingFor returns the uses left on one key, or 0 for unknown keys.
func (l *BaitLedger) RemainingFor(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, k := range l.keys {
		if k == key {
			return l.remaining[i]
		}
	}
	return 0
}
