package app

import (
	"context"
	"time"
)

// SimulatedPaymentProcessor stands in for a real payment provider: it waits
// a fixed processing delay and approves. It honors context cancellation so
// a dropped request does not hold the booking open.
type SimulatedPaymentProcessor struct {
	delay time.Duration
}

// NewSimulatedPaymentProcessor builds a processor with the given delay.
// Zero or negative means approve immediately.
func NewSimulatedPaymentProcessor(delay time.Duration) *SimulatedPaymentProcessor {
	return &SimulatedPaymentProcessor{delay: delay}
}

func (p *SimulatedPaymentProcessor) Process(ctx context.Context, identity string, quantity int) error {
	if p.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
