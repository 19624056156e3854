package admission

// QuotaTracker records cumulative tickets granted per identity. It is pure
// bookkeeping: the engine performs the limit comparison so that check and
// grant happen inside one critical section.
type QuotaTracker struct {
	granted map[string]int
}

// NewQuotaTracker returns an empty tracker.
func NewQuotaTracker() *QuotaTracker {
	return &QuotaTracker{granted: make(map[string]int)}
}

// Granted reports the identity's cumulative total.
func (q *QuotaTracker) Granted(identity string) int {
	return q.granted[identity]
}

// Grant adds n to the identity's total.
func (q *QuotaTracker) Grant(identity string, n int) {
	q.granted[identity] += n
}

// Revoke subtracts n from the identity's total, flooring at zero. Used by
// the post-admission cancel path.
func (q *QuotaTracker) Revoke(identity string, n int) {
	total := q.granted[identity] - n
	if total < 0 {
		total = 0
	}
	q.granted[identity] = total
}
