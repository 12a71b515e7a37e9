package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

var customerTemplates = map[string]*template.Template{
	models.NotifyReservationReceived: template.Must(template.New("received").Parse(`
<h2>Hola {{.CustomerName}},</h2>
<p>Hemos recibido tu reserva <b>#{{.Code}}</b> para el {{.EventDate}}.</p>
{{if .Lines}}<table>
{{range .Lines}}<tr><td>{{.Name}}</td><td>x{{.Quantity}}</td><td>{{printf "%.2f" .Subtotal}}</td></tr>
{{end}}</table>{{end}}
<p>Subtotal: {{printf "%.2f" .Subtotal}} | Impuestos: {{printf "%.2f" .Tax}} | <b>Total: {{printf "%.2f" .Total}}</b></p>
<p>Por favor realiza el pago para confirmarla.</p>`)),
	models.NotifyReservationApproved: template.Must(template.New("approved").Parse(`
<h2>Hola {{.CustomerName}},</h2>
<p>¡Tu reserva <b>#{{.Code}}</b> ha sido APROBADA! 🎉</p>
<p>Fecha del evento: {{.EventDate}}<br>Dirección: {{.Address}}</p>
<p>Presenta el código QR adjunto el día del evento.</p>`)),
	models.NotifyReservationVoided: template.Must(template.New("voided").Parse(`
<h2>Hola {{.CustomerName}},</h2>
<p>Lamentamos informarte que tu reserva <b>#{{.Code}}</b> ha sido anulada.</p>`)),
}

var adminTemplate = template.Must(template.New("admin").Parse(`
<h3>{{.Kind}}: reserva #{{.Code}}</h3>
<p>Cliente: {{.CustomerName}} ({{.CustomerEmail}})<br>
Fecha: {{.EventDate}}<br>Total: {{printf "%.2f" .Total}}</p>`))

func subjectFor(ev models.NotificationEvent) string {
	switch ev.Kind {
	case models.NotifyReservationApproved:
		return fmt.Sprintf("✅ Evento Confirmado - %s", ev.Code)
	case models.NotifyReservationVoided:
		return fmt.Sprintf("❌ Reserva Anulada - %s", ev.Code)
	default:
		return fmt.Sprintf("📥 Reserva Recibida #%s - Burbujitas de Colores", ev.Code)
	}
}

// Mailer turns notification events into customer and admin emails. Send
// failures are logged only; the reservation that triggered them is already
// committed and must stay that way.
type Mailer struct {
	Config config.EmailConfig
	Logger *logger.Logger

	// send is swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	return &Mailer{Config: cfg, Logger: log, send: smtp.SendMail}
}

// Handle delivers one notification event: the customer mail, then the admin
// copy. Each failure is independent.
func (m *Mailer) Handle(ev models.NotificationEvent) {
	tmpl, ok := customerTemplates[ev.Kind]
	if !ok {
		m.Logger.Warn("MAIL", fmt.Sprintf("unknown notification kind %q for %s", ev.Kind, ev.Code))
		return
	}

	var qrPNG []byte
	if ev.Kind == models.NotifyReservationApproved {
		png, err := GenerateReservationQR(ev.Code, ev.EventDate)
		if err != nil {
			m.Logger.Warn("MAIL", fmt.Sprintf("QR generation failed for %s: %v", ev.Code, err))
		} else {
			qrPNG = png
		}
	}

	if err := m.sendHTML(ev.CustomerEmail, subjectFor(ev), tmpl, ev, qrPNG); err != nil {
		m.Logger.Error("MAIL", fmt.Sprintf("customer mail for %s failed: %v", ev.Code, err))
	} else {
		m.Logger.LogMail(ev.Kind, ev.CustomerEmail, "customer mail sent")
	}

	adminSubject := utils.CleanText(fmt.Sprintf("🔔 %s #%s - %s", ev.Kind, ev.Code, ev.CustomerName))
	if err := m.sendHTML(m.Config.AdminAddress, adminSubject, adminTemplate, ev, nil); err != nil {
		m.Logger.Error("MAIL", fmt.Sprintf("admin mail for %s failed: %v", ev.Code, err))
	} else {
		m.Logger.LogMail(ev.Kind, m.Config.AdminAddress, "admin mail sent")
	}
}

func (m *Mailer) sendHTML(to, subject string, tmpl *template.Template, ev models.NotificationEvent, attachment []byte) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, ev); err != nil {
		return fmt.Errorf("template render: %w", err)
	}

	msg, err := buildMessage(m.Config.FromAddress, to, subject, body.Bytes(), attachment)
	if err != nil {
		return err
	}

	addr := m.Config.SMTPHost + ":" + m.Config.SMTPPort
	var auth smtp.Auth
	if m.Config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.Config.SMTPUsername, m.Config.SMTPPassword, m.Config.SMTPHost)
	}
	return m.send(addr, auth, m.Config.FromAddress, []string{to}, msg)
}

func buildMessage(from, to, subject string, htmlBody, qrPNG []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	htmlPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write(htmlBody); err != nil {
		return nil, err
	}

	if len(qrPNG) > 0 {
		qrPart, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/png; name=reservation-qr.png"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {"attachment; filename=reservation-qr.png"},
		})
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(qrPNG)
		if _, err := qrPart.Write([]byte(encoded)); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
