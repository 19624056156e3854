package admission

import "sync/atomic"

// Inventory is the shared pool of allocatable tickets. The counter is the
// one piece of engine state with its own atomicity: many callers race for
// the last few units and the decrement must not serialize behind the
// engine's composite checks.
type Inventory struct {
	capacity  int64
	remaining atomic.Int64
}

// NewInventory returns a pool holding capacity units.
func NewInventory(capacity int) *Inventory {
	inv := &Inventory{capacity: int64(capacity)}
	inv.remaining.Store(int64(capacity))
	return inv
}

// TryReserve atomically subtracts n from the pool. The CAS loop checks and
// subtracts in one indivisible step, so the counter never dips below zero
// where a concurrent Remaining could observe it.
func (inv *Inventory) TryReserve(n int) (remaining int, ok bool) {
	if n <= 0 {
		return int(inv.remaining.Load()), false
	}
	for {
		cur := inv.remaining.Load()
		next := cur - int64(n)
		if next < 0 {
			return int(cur), false
		}
		if inv.remaining.CompareAndSwap(cur, next) {
			return int(next), true
		}
	}
}

// Release returns n units to the pool, clamped at capacity. Used when a
// booking is cancelled after admission (payment failure).
func (inv *Inventory) Release(n int) {
	if n <= 0 {
		return
	}
	for {
		cur := inv.remaining.Load()
		next := cur + int64(n)
		if next > inv.capacity {
			next = inv.capacity
		}
		if inv.remaining.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Remaining reports the current pool level.
func (inv *Inventory) Remaining() int {
	return int(inv.remaining.Load())
}

// Capacity reports the configured total.
func (inv *Inventory) Capacity() int {
	return int(inv.capacity)
}
