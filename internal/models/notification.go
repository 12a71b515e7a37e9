package models

import "time"

// Notification kinds published on the booking events topic.
const (
	NotifyReservationReceived = "reservation_received"
	NotifyReservationApproved = "reservation_approved"
	NotifyReservationVoided   = "reservation_voided"
)

// LineSnapshot is the in-memory copy of a reservation line carried inside a
// notification event, so the mailer never has to re-query a replica that may
// not have seen the commit yet.
type LineSnapshot struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type NotificationEvent struct {
	Kind          string         `json:"kind"`
	ReservationID int64          `json:"reservation_id"`
	Code          string         `json:"code"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	EventDate     string         `json:"event_date"`
	Address       string         `json:"address,omitempty"`
	PaymentMethod string         `json:"payment_method,omitempty"`
	Subtotal      float64        `json:"subtotal"`
	Tax           float64        `json:"tax"`
	Total         float64        `json:"total"`
	Lines         []LineSnapshot `json:"lines,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func NewNotificationEvent(kind string, res *Reservation, customer *Customer, lines []LineSnapshot) NotificationEvent {
	return NotificationEvent{
		Kind:          kind,
		ReservationID: res.ID,
		Code:          res.Code,
		CustomerName:  customer.FullName(),
		CustomerEmail: customer.Email,
		EventDate:     res.EventDate,
		Address:       res.Address,
		PaymentMethod: res.PaymentMethod,
		Subtotal:      res.Subtotal,
		Tax:           res.Tax,
		Total:         res.Total,
		Lines:         lines,
		OccurredAt:    time.Now().UTC(),
	}
}
