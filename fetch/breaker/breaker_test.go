package breaker

import (
	"testing"
	"time"
)

func TestClosedOpensAtThreshold(t *testing.T) {
	b := New("api.example.com", 3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if got := b.State(); got != StateClosed {
			t.Fatalf("after %d failures state = %v, want closed", i+1, got)
		}
		if !b.CanAttempt() {
			t.Fatalf("after %d failures CanAttempt = false, want true", i+1)
		}
	}

	b.RecordFailure()
	if got := b.State(); got != StateOpen {
		t.Fatalf("after threshold failures state = %v, want open", got)
	}
	if b.CanAttempt() {
		t.Fatal("CanAttempt = true on open breaker, want false")
	}
}

func TestOpenFlipsToHalfOpenAfterRecovery(t *testing.T) {
	b := New("api.example.com", 1, 20*time.Millisecond)

	b.RecordFailure()
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	if b.CanAttempt() {
		t.Fatal("CanAttempt = true before recovery timeout")
	}

	time.Sleep(30 * time.Millisecond)

	if !b.CanAttempt() {
		t.Fatal("CanAttempt = false after recovery timeout, want true")
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state = %v, want half_open", got)
	}

	// Only one probe is permitted while the first is unresolved.
	if b.CanAttempt() {
		t.Fatal("second CanAttempt = true during half-open probe, want false")
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b := New("api.example.com", 1, 10*time.Millisecond)
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !b.CanAttempt() {
		t.Fatal("CanAttempt = false, want probe permitted")
	}
	b.RecordSuccess()

	if got := b.State(); got != StateClosed {
		t.Fatalf("state after probe success = %v, want closed", got)
	}
	if got := b.FailureCount(); got != 0 {
		t.Fatalf("failure count after probe success = %d, want 0", got)
	}
}

func TestHalfOpenFailureReopensWithEscalatedCount(t *testing.T) {
	b := New("api.example.com", 2, 10*time.Millisecond)
	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !b.CanAttempt() {
		t.Fatal("CanAttempt = false, want probe permitted")
	}
	b.RecordFailure()

	if got := b.State(); got != StateOpen {
		t.Fatalf("state after probe failure = %v, want open", got)
	}
	// Probe failures keep counting instead of resetting.
	if got := b.FailureCount(); got != 3 {
		t.Fatalf("failure count after probe failure = %d, want 3", got)
	}
	if b.CanAttempt() {
		t.Fatal("CanAttempt = true immediately after re-open, want false")
	}
}

func TestSuccessResetsClosedCount(t *testing.T) {
	b := New("api.example.com", 3, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed (failures are not consecutive)", got)
	}
}

func TestRegistryLazyCreateAndReset(t *testing.T) {
	r := NewRegistry(2, time.Minute)

	if got := r.Len(); got != 0 {
		t.Fatalf("new registry Len = %d, want 0", got)
	}

	a := r.Get("a.example.com")
	if a2 := r.Get("a.example.com"); a2 != a {
		t.Fatal("Get returned a different breaker for the same key")
	}
	r.Get("b.example.com")
	if got := r.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}

	a.RecordFailure()
	a.RecordFailure()
	states := r.States()
	if states["a.example.com"] != StateOpen || states["b.example.com"] != StateClosed {
		t.Fatalf("States = %v, want a open and b closed", states)
	}

	r.Reset("a.example.com")
	if got := r.Get("a.example.com").State(); got != StateClosed {
		t.Fatalf("state after Reset = %v, want closed", got)
	}

	r.ResetAll()
	if got := r.Len(); got != 0 {
		t.Fatalf("Len after ResetAll = %d, want 0", got)
	}
}
