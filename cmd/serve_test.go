package cmd

import (
	"sync/atomic"
	"testing"

	"togglsync/internal/config"
)

func TestScheduleParser(t *testing.T) {
	tests := []struct {
		schedule string
		valid    bool
	}{
		{"0 * * * *", true},
		{"*/15 * * * *", true},
		{"30 8 * * 1-5", true},
		{config.DefaultSchedule, true},
		{"", false},
		{"not a schedule", false},
		{"0 * * *", false},     // too few fields
		{"0 0 * * * *", false}, // six fields; seconds are not supported
		{"@hourly", false},     // descriptors are not enabled
		{"61 * * * *", false},  // minute out of range
	}
	parser := scheduleParser()
	for _, tt := range tests {
		_, err := parser.Parse(tt.schedule)
		if tt.valid && err != nil {
			t.Errorf("Parse(%q) = %v, want nil", tt.schedule, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("Parse(%q) = nil, want error", tt.schedule)
		}
	}
}

func TestRunGuardedSkipsOverlappingTick(t *testing.T) {
	var busy atomic.Bool
	var runs int

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runGuarded(&busy, func() {
			runs++
			close(started)
			<-release
		})
		close(done)
	}()

	<-started
	if runGuarded(&busy, func() { runs++ }) {
		t.Error("tick during an in-flight run should be skipped")
	}
	close(release)
	<-done

	if !runGuarded(&busy, func() { runs++ }) {
		t.Error("tick after the previous run finished should execute")
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}
