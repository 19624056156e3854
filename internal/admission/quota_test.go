package admission

import "testing"

func TestQuotaTracker(t *testing.T) {
	t.Parallel()

	q := NewQuotaTracker()

	if got := q.Granted("u1"); got != 0 {
		t.Fatalf("expected zero for unknown identity, got %d", got)
	}

	q.Grant("u1", 3)
	q.Grant("u1", 2)
	if got := q.Granted("u1"); got != 5 {
		t.Fatalf("expected 5 granted, got %d", got)
	}
	if got := q.Granted("u2"); got != 0 {
		t.Fatalf("expected u2 untouched, got %d", got)
	}

	q.Revoke("u1", 2)
	if got := q.Granted("u1"); got != 3 {
		t.Fatalf("expected 3 after revoke, got %d", got)
	}

	q.Revoke("u1", 10)
	if got := q.Granted("u1"); got != 0 {
		t.Fatalf("expected revoke floored at zero, got %d", got)
	}
}
