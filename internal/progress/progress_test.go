package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNewTracker(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		wantNil bool
	}{
		{"many files", 100, false},
		{"two files", 2, false},
		{"single file", 1, true},
		{"no files", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(&bytes.Buffer{}, "Qualifying", tt.total)
			if (tracker == nil) != tt.wantNil {
				t.Errorf("NewTracker(%d) nil = %v, want %v", tt.total, tracker == nil, tt.wantNil)
			}
		})
	}
}

func TestNilTrackerIsNoop(t *testing.T) {
	var tracker *Tracker
	tracker.Tick()
	tracker.Finish()
	tracker.FinishError(errors.New("ignored"))
}

func TestTickConcurrent(t *testing.T) {
	tracker := NewTracker(&bytes.Buffer{}, "Qualifying", 50)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Tick()
		}()
	}
	wg.Wait()
	tracker.Finish()
}

func TestFinishError(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(&buf, "Qualifying", 3)
	tracker.FinishError(errors.New("disk full"))

	if !strings.Contains(buf.String(), "Qualifying error: disk full") {
		t.Errorf("output = %q", buf.String())
	}
}
