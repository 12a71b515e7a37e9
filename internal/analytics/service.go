package analytics

import (
	"context"

	"github.com/uptrace/bun"

	"ms-booking/internal/dbrouter"
	"ms-booking/internal/models"
)

// Service aggregates booking metrics for the admin dashboard. Reads go
// through the failover router like every other query.
type Service struct {
	router *dbrouter.Router
}

// NewService creates a new analytics service
func NewService(router *dbrouter.Router) *Service {
	return &Service{router: router}
}

// StatusCount holds the reservation count for one state
type StatusCount struct {
	Status string `bun:"status" json:"status"`
	Count  int    `bun:"count" json:"count"`
}

// Summary represents aggregated booking data across all reservations
type Summary struct {
	TotalReservations int           `json:"total_reservations"`
	StatusCounts      []StatusCount `json:"status_counts"`
	ConfirmedRevenue  float64       `json:"confirmed_revenue"`
	PendingRevenue    float64       `json:"pending_revenue"`
}

// DailyMetrics contains booking metrics for a single event date
type DailyMetrics struct {
	Date         string  `bun:"event_date" json:"date"`
	Reservations int     `bun:"reservations" json:"reservations"`
	Revenue      float64 `bun:"revenue" json:"revenue"`
}

// ItemSales contains sales metrics for one catalog item
type ItemSales struct {
	ItemName string  `bun:"item_name" json:"item_name"`
	Quantity int     `bun:"quantity" json:"quantity"`
	Revenue  float64 `bun:"revenue" json:"revenue"`
}

// GetSummary returns reservation counts per state and revenue totals.
func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	db := s.router.DB(ctx, dbrouter.OpRead)

	var counts []StatusCount
	err := db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &counts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{StatusCounts: counts}
	for _, c := range counts {
		summary.TotalReservations += c.Count
	}

	err = db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("COALESCE(SUM(total), 0)").
		Where("status = ?", models.StatusApproved).
		Scan(ctx, &summary.ConfirmedRevenue)
	if err != nil {
		return nil, err
	}

	err = db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("COALESCE(SUM(total), 0)").
		Where("status = ?", models.StatusPending).
		Scan(ctx, &summary.PendingRevenue)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// GetDailyBookings returns active reservation counts and revenue grouped by
// event date. The range bounds are optional.
func (s *Service) GetDailyBookings(ctx context.Context, from, to string) ([]DailyMetrics, error) {
	db := s.router.DB(ctx, dbrouter.OpRead)

	q := db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("event_date").
		ColumnExpr("COUNT(*) AS reservations").
		ColumnExpr("COALESCE(SUM(total), 0) AS revenue").
		Where("status IN (?)", bun.In([]string{models.StatusPending, models.StatusApproved})).
		Group("event_date").
		Order("event_date")

	if from != "" {
		q = q.Where("event_date >= ?", from)
	}
	if to != "" {
		q = q.Where("event_date <= ?", to)
	}

	var out []DailyMetrics
	if err := q.Scan(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTopItems returns the best selling catalog items across approved
// reservations.
func (s *Service) GetTopItems(ctx context.Context, limit int) ([]ItemSales, error) {
	if limit < 1 {
		limit = 10
	}
	db := s.router.DB(ctx, dbrouter.OpRead)

	var out []ItemSales
	err := db.NewRaw(`
		SELECT l.item_name, SUM(l.quantity) AS quantity, COALESCE(SUM(l.subtotal), 0) AS revenue
		FROM reservation_lines l
		JOIN reservations r ON r.id = l.reservation_id
		WHERE r.status = ?
		GROUP BY l.item_name
		ORDER BY revenue DESC
		LIMIT ?`, models.StatusApproved, limit).
		Scan(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
