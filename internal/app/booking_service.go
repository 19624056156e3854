package app

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/clock"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/domain"
)

// Admitter is the admission-control engine as the service sees it.
type Admitter interface {
	Book(identity, deviceID, ip string, quantity int) (remaining int, err error)
	Cancel(identity string, quantity int)
	Remaining() int
	Capacity() int
}

// PaymentProcessor charges for an admitted booking. A non-nil error cancels
// the admission.
type PaymentProcessor interface {
	Process(ctx context.Context, identity string, quantity int) error
}

// AuditRecorder persists one record per decision. Recording is best-effort:
// failures are logged, never surfaced to the caller.
type AuditRecorder interface {
	Record(ctx context.Context, rec domain.BookingRecord) error
}

// BookingService wires the admission engine to the collaborators the engine
// deliberately knows nothing about: payment, ticket-code generation and the
// audit trail.
type BookingService struct {
	engine   Admitter
	payments PaymentProcessor
	audit    AuditRecorder
	clock    clock.Clock
	logger   *log.Logger
}

func NewBookingService(engine Admitter, payments PaymentProcessor, clk clock.Clock, opts ...BookingServiceOption) *BookingService {
	svc := &BookingService{
		engine:   engine,
		payments: payments,
		clock:    clk,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type BookingServiceOption func(*BookingService)

// WithAuditRecorder enables the decision audit trail.
func WithAuditRecorder(rec AuditRecorder) BookingServiceOption {
	return func(s *BookingService) {
		s.audit = rec
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type BookInput struct {
	UserID         string
	DeviceID       string
	IPAddress      string
	Quantity       int
	PassengerNames []string
}

// Book attempts a booking end to end: admission, payment, ticket issue.
// Every decision, accepted or rejected, lands in the audit trail.
func (s *BookingService) Book(ctx context.Context, in BookInput) (domain.Booking, error) {
	if len(in.PassengerNames) > 0 && len(in.PassengerNames) != in.Quantity {
		s.recordDecision(ctx, in, domain.ErrPassengerMismatch)
		return domain.Booking{}, domain.ErrPassengerMismatch
	}

	remaining, err := s.engine.Book(in.UserID, in.DeviceID, in.IPAddress, in.Quantity)
	if err != nil {
		s.recordDecision(ctx, in, err)
		return domain.Booking{}, err
	}

	if err := s.payments.Process(ctx, in.UserID, in.Quantity); err != nil {
		s.engine.Cancel(in.UserID, in.Quantity)
		s.logger.Printf("payment failed user=%s quantity=%d err=%v", in.UserID, in.Quantity, err)
		s.recordDecision(ctx, in, domain.ErrPaymentFailed)
		return domain.Booking{}, domain.ErrPaymentFailed
	}

	booking := domain.Booking{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Quantity:       in.Quantity,
		TicketCodes:    generateTicketCodes(in.Quantity),
		PassengerNames: in.PassengerNames,
		Remaining:      remaining,
		CreatedAt:      s.clock.Now(),
	}

	s.recordDecision(ctx, in, nil)
	return booking, nil
}

// Remaining reports the current pool level for the observability endpoint.
func (s *BookingService) Remaining() int {
	return s.engine.Remaining()
}

// Capacity reports the configured total.
func (s *BookingService) Capacity() int {
	return s.engine.Capacity()
}

func (s *BookingService) recordDecision(ctx context.Context, in BookInput, rejection error) {
	if s.audit == nil {
		return
	}
	outcome := domain.OutcomeFromError(rejection)
	rec := domain.BookingRecord{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		DeviceID:  in.DeviceID,
		IPAddress: in.IPAddress,
		Quantity:  in.Quantity,
		Accepted:  outcome.Accepted,
		Reason:    outcome.Reason,
		CreatedAt: s.clock.Now(),
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.Printf("audit record failed user=%s err=%v", in.UserID, err)
	}
}
