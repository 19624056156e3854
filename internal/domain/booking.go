package domain

import "time"

// Booking represents a successfully admitted and paid reservation.
type Booking struct {
	ID             string
	UserID         string
	Quantity       int
	TicketCodes    []string
	PassengerNames []string
	Remaining      int
	CreatedAt      time.Time
}

// BookingRecord is one row of the audit trail: every decision, accepted or
// not, with the reason it was rejected. The trail is write-only from the
// booking path; admission never reads it back.
type BookingRecord struct {
	ID        string
	UserID    string
	DeviceID  string
	IPAddress string
	Quantity  int
	Accepted  bool
	Reason    string
	CreatedAt time.Time
}
