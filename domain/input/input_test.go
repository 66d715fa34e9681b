package input

import (
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		token string
		want  byte
		ok    bool
	}{
		{"1", '1', true},
		{"4", '4', true},
		{"g", 'G', true},
		{"G", 'G', true},
		{"space", 0x20, true},
		{"SPACE", 0x20, true},
		{"ctrl", 0x11, true},
		{"control", 0x11, true},
		{"F1", 0x70, true},
		{"f5", 0x74, true},
		{"F12", 0x7B, true},
		{"F13", 0, false},
		{"F0", 0, false},
		{"", 0, false},
		{"enter", 0, false},
		{"12", 0, false},
	}
	for _, c := range cases {
		got, err := ParseKey(c.token)
		if c.ok && (err != nil || got != c.want) {
			t.Fatalf("ParseKey(%q) = %#x, %v; want %#x", c.token, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseKey(%q) accepted as %#x", c.token, got)
		}
	}
}

func TestButtonString(t *testing.T) {
	if ButtonLeft.String() != "left" || ButtonRight.String() != "right" {
		t.Fatalf("button names = %s/%s", ButtonLeft, ButtonRight)
	}
}

// slowExec flags any injection that runs while another is still in flight.
type slowExec struct {
	active  atomic.Int32
	overlap atomic.Bool
	calls   atomic.Int32
}

func (e *slowExec) enter() {
	if e.active.Add(1) > 1 {
		e.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	e.active.Add(-1)
	e.calls.Add(1)
}

func (e *slowExec) PressKey(string) error           { e.enter(); return nil }
func (e *slowExec) PressChord(string, string) error { e.enter(); return nil }
func (e *slowExec) MoveCursor(image.Point) error    { e.enter(); return nil }
func (e *slowExec) Click(image.Point, Button) error { e.enter(); return nil }

func TestSerializeBlocksConcurrentSequences(t *testing.T) {
	inner := &slowExec{}
	exec := Serialize(inner)

	// Eight sessions share one OS cursor and keyboard; their injections
	// must never interleave.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = exec.Click(image.Pt(j, j), ButtonLeft)
				_ = exec.PressKey("space")
			}
		}()
	}
	wg.Wait()

	if inner.overlap.Load() {
		t.Fatalf("injections from different goroutines overlapped")
	}
	if got := inner.calls.Load(); got != 160 {
		t.Fatalf("delegated calls = %d, want 160", got)
	}
}
