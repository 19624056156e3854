package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RensithUdara/Online-Train-Ticket-Booking/internal/domain"
)

// AuditRepository persists booking decisions. It is append-and-report only:
// nothing in the admission path ever reads from it, so losing it degrades
// reporting, not correctness.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Record(ctx context.Context, rec domain.BookingRecord) error {
	const query = `
INSERT INTO booking_audit (id, user_id, device_id, ip_address, quantity, accepted, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.DeviceID, rec.IPAddress, rec.Quantity, rec.Accepted, rec.Reason, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking audit: %w", err)
	}
	return nil
}

// RecentDecisions returns the newest records first, capped at limit.
func (r *AuditRepository) RecentDecisions(ctx context.Context, limit int) ([]domain.BookingRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
SELECT id, user_id, device_id, ip_address, quantity, accepted, reason, created_at
FROM booking_audit
ORDER BY created_at DESC, id DESC
LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query booking audit: %w", err)
	}
	defer rows.Close()

	var records []domain.BookingRecord
	for rows.Next() {
		var rec domain.BookingRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.DeviceID, &rec.IPAddress,
			&rec.Quantity, &rec.Accepted, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking audit: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking audit: %w", err)
	}
	return records, nil
}

// CountByReason aggregates rejected decisions per reason, for reporting.
func (r *AuditRepository) CountByReason(ctx context.Context) (map[string]int, error) {
	const query = `
SELECT reason, COUNT(*)
FROM booking_audit
WHERE NOT accepted
GROUP BY reason`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count booking audit: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		counts[reason] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit counts: %w", err)
	}
	return counts, nil
}
