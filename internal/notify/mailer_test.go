package notify

import (
	"bytes"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type sentMail struct {
	to  []string
	msg []byte
}

func testMailer(t *testing.T) (*Mailer, *[]sentMail) {
	t.Helper()

	var sent []sentMail
	m := NewMailer(config.EmailConfig{
		SMTPHost:     "smtp.test.local",
		SMTPPort:     "587",
		FromAddress:  "noreply@fiesta.local",
		AdminAddress: "admin@fiesta.local",
	}, logger.NewLogger())
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{to: to, msg: msg})
		return nil
	}
	return m, &sent
}

func sampleEvent(kind string) models.NotificationEvent {
	return models.NotificationEvent{
		Kind:          kind,
		Code:          "RES-0001-abc",
		CustomerName:  "Maria Lopez",
		CustomerEmail: "maria@test.local",
		EventDate:     "2026-06-15",
		Address:       "Av. Siempre Viva 742",
		Subtotal:      100,
		Tax:           12,
		Total:         112,
		Lines:         []models.LineSnapshot{{Name: "Castillo inflable", Quantity: 1, UnitPrice: 100, Subtotal: 100}},
	}
}

func TestHandleSendsCustomerAndAdminMail(t *testing.T) {
	m, sent := testMailer(t)

	m.Handle(sampleEvent(models.NotifyReservationReceived))

	require.Len(t, *sent, 2, "expected customer and admin mail")
	assert.Equal(t, []string{"maria@test.local"}, (*sent)[0].to)
	assert.Equal(t, []string{"admin@fiesta.local"}, (*sent)[1].to)
	assert.Contains(t, string((*sent)[0].msg), "RES-0001-abc")
	assert.NotContains(t, string((*sent)[0].msg), "image/png",
		"received notifications carry no QR attachment")
}

func TestApprovalMailAttachesQR(t *testing.T) {
	m, sent := testMailer(t)

	m.Handle(sampleEvent(models.NotifyReservationApproved))

	require.Len(t, *sent, 2)
	assert.Contains(t, string((*sent)[0].msg), "image/png")
	assert.Contains(t, string((*sent)[0].msg), "reservation-qr.png")
}

func TestUnknownKindSendsNothing(t *testing.T) {
	m, sent := testMailer(t)

	m.Handle(sampleEvent("reservation_exploded"))

	assert.Empty(t, *sent)
}

func TestSubjectPerKind(t *testing.T) {
	cases := map[string]string{
		models.NotifyReservationReceived: "Reserva Recibida",
		models.NotifyReservationApproved: "Evento Confirmado",
		models.NotifyReservationVoided:   "Reserva Anulada",
	}
	for kind, want := range cases {
		assert.Contains(t, subjectFor(sampleEvent(kind)), want)
	}
}

func TestGenerateReservationQR(t *testing.T) {
	png, err := GenerateReservationQR("RES-0001-abc", "2026-06-15")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "expected a PNG image")
}
