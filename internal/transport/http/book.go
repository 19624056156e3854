package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/app"
	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/domain"
)

// BookingCreator is the minimal interface needed to create a booking.
type BookingCreator interface {
	Book(ctx context.Context, in app.BookInput) (domain.Booking, error)
}

// HandleCreateBooking returns an HTTP handler for booking tickets. The
// client IP is taken from the connection, not from the request body: the
// requester never gets to choose the address the anomaly detector sees.
func HandleCreateBooking(svc BookingCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createBookingRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, err.Error())
			return
		}

		booking, err := svc.Book(r.Context(), app.BookInput{
			UserID:         req.UserID,
			DeviceID:       req.DeviceID,
			IPAddress:      clientIP(r),
			Quantity:       req.Quantity,
			PassengerNames: req.PassengerNames,
		})
		if err != nil {
			status, code := rejectionStatus(err)
			writeError(w, status, code, err.Error())
			return
		}

		resp := createBookingResponse{
			ID:             booking.ID,
			UserID:         booking.UserID,
			Quantity:       booking.Quantity,
			TicketCodes:    booking.TicketCodes,
			PassengerNames: booking.PassengerNames,
			Remaining:      booking.Remaining,
			CreatedAt:      booking.CreatedAt,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func rejectionStatus(err error) (int, string) {
	switch err {
	case domain.ErrInvalidIdentity:
		return http.StatusUnauthorized, codeInvalidIdentity
	case domain.ErrSuspiciousActivity:
		return http.StatusForbidden, codeSuspiciousActivity
	case domain.ErrRateLimitExceeded:
		return http.StatusTooManyRequests, codeRateLimitExceeded
	case domain.ErrInvalidQuantity:
		return http.StatusBadRequest, codeInvalidQuantity
	case domain.ErrPassengerMismatch:
		return http.StatusBadRequest, codePassengerMismatch
	case domain.ErrQuotaExceeded:
		return http.StatusConflict, codeQuotaExceeded
	case domain.ErrInsufficientInventory:
		return http.StatusConflict, codeInsufficientTickets
	case domain.ErrPaymentFailed:
		return http.StatusPaymentRequired, codePaymentFailed
	default:
		return http.StatusInternalServerError, codeInternalError
	}
}

// clientIP prefers the first X-Forwarded-For hop (set by a fronting proxy)
// and falls back to the connection's peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type createBookingRequest struct {
	UserID         string   `json:"user_id"`
	DeviceID       string   `json:"device_id"`
	Quantity       int      `json:"quantity"`
	PassengerNames []string `json:"passenger_names"`
}

func (r createBookingRequest) validate() error {
	if r.UserID == "" {
		return domain.ErrInvalidIdentity
	}
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

type createBookingResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Quantity       int       `json:"quantity"`
	TicketCodes    []string  `json:"ticket_codes"`
	PassengerNames []string  `json:"passenger_names,omitempty"`
	Remaining      int       `json:"remaining"`
	CreatedAt      time.Time `json:"created_at"`
}
