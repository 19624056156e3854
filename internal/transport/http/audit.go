package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/domain"
)

// AuditReader lists recorded booking decisions.
type AuditReader interface {
	RecentDecisions(ctx context.Context, limit int) ([]domain.BookingRecord, error)
}

const defaultAuditLimit = 50
const maxAuditLimit = 500

// HandleAuditLog returns recent booking decisions, newest first. A nil
// reader (audit trail disabled) serves an empty list rather than an error
// so dashboards keep working either way.
func HandleAuditLog(reader AuditReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		limit := defaultAuditLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "limit must be a positive integer")
				return
			}
			if parsed > maxAuditLimit {
				parsed = maxAuditLimit
			}
			limit = parsed
		}

		records := []domain.BookingRecord{}
		if reader != nil {
			var err error
			records, err = reader.RecentDecisions(r.Context(), limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
		}

		resp := auditLogResponse{Decisions: make([]auditDecision, 0, len(records))}
		for _, rec := range records {
			resp.Decisions = append(resp.Decisions, auditDecision{
				ID:        rec.ID,
				UserID:    rec.UserID,
				DeviceID:  rec.DeviceID,
				IPAddress: rec.IPAddress,
				Quantity:  rec.Quantity,
				Accepted:  rec.Accepted,
				Reason:    rec.Reason,
				CreatedAt: rec.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type auditLogResponse struct {
	Decisions []auditDecision `json:"decisions"`
}

type auditDecision struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	IPAddress string    `json:"ip_address"`
	Quantity  int       `json:"quantity"`
	Accepted  bool      `json:"accepted"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
