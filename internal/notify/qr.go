package notify

import (
	"encoding/json"

	"github.com/skip2/go-qrcode"
)

type qrPayload struct {
	Code      string `json:"code"`
	EventDate string `json:"event_date"`
}

// GenerateReservationQR renders the reservation code as a PNG QR image,
// attached to approval emails so staff can scan it at the event.
func GenerateReservationQR(code, eventDate string) ([]byte, error) {
	data, err := json.Marshal(qrPayload{Code: code, EventDate: eventDate})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(data), qrcode.Medium, 256)
}
