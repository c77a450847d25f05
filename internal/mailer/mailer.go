package mailer

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"

	"github.com/eventhub/eventhub-api/internal/metrics"
	"github.com/eventhub/eventhub-api/internal/models"
)

// WeeklyReport carries the prior-7-day stats mailed to admins.
type WeeklyReport struct {
	TotalBookings int64
	TotalRevenue  float64
	NewUsers      int64
	ActiveEvents  int64
}

// Mailer is the outbound-email boundary. Send failures must never fail
// the request or job that triggered them; callers log and move on.
type Mailer interface {
	SendWelcome(toEmail, name string) error
	SendBookingConfirmation(toEmail string, booking *models.Booking, event *models.Event, qrPNG []byte) error
	SendEventReminder(toEmail string, booking *models.Booking, event *models.Event) error
	SendWeeklyReport(toEmail string, report WeeklyReport) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewFromEnv() *SMTPMailer {
	port, err := strconv.Atoi(os.Getenv("EMAIL_PORT"))
	if err != nil {
		port = 587
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(
			os.Getenv("EMAIL_HOST"),
			port,
			os.Getenv("EMAIL_USER"),
			os.Getenv("EMAIL_PASS"),
		),
		from: fmt.Sprintf("EventHub <%s>", os.Getenv("EMAIL_USER")),
	}
}

func (m *SMTPMailer) send(kind, to, subject, htmlBody string, attach func(*gomail.Message)) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if attach != nil {
		attach(msg)
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return err
	}
	metrics.IncEmailSent(kind)
	return nil
}

func (m *SMTPMailer) SendWelcome(toEmail, name string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<h2 style="color: #3B82F6;">Welcome to EventHub, %s!</h2>
			<p>Thank you for joining our community. You can now browse and book amazing events.</p>
			<p>Best regards,<br>The EventHub Team</p>
		</div>`, name)
	return m.send("welcome", toEmail, "Welcome to EventHub!", body, nil)
}

func (m *SMTPMailer) SendBookingConfirmation(toEmail string, booking *models.Booking, event *models.Event, qrPNG []byte) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<h2 style="color: #10B981;">Booking Confirmed!</h2>
			<div style="background: #F3F4F6; padding: 20px; border-radius: 8px; margin: 20px 0;">
				<h3>%s</h3>
				<p><strong>Date:</strong> %s</p>
				<p><strong>Location:</strong> %s</p>
				<p><strong>Seats:</strong> %d</p>
				<p><strong>Total Amount:</strong> $%.2f</p>
				<p><strong>Ticket Code:</strong> %s</p>
			</div>
			<p>Your QR code is attached to this email. Please bring it (digital or printed) to the event.</p>
			<p>Best regards,<br>The EventHub Team</p>
		</div>`,
		event.Title, event.Date.Format("Jan 2, 2006 3:04 PM"), event.Location,
		booking.Seats, booking.TotalAmount, booking.TicketCode)

	attach := func(msg *gomail.Message) {
		if len(qrPNG) == 0 {
			return
		}
		msg.Attach(fmt.Sprintf("ticket-%s.png", booking.TicketCode),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(qrPNG)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {"image/png"}}),
		)
	}
	subject := fmt.Sprintf("Booking Confirmation - %s", event.Title)
	return m.send("booking_confirmation", toEmail, subject, body, attach)
}

func (m *SMTPMailer) SendEventReminder(toEmail string, booking *models.Booking, event *models.Event) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<h2 style="color: #F59E0B;">Event Reminder</h2>
			<p>Don't forget about your upcoming event tomorrow!</p>
			<div style="background: #FEF3C7; padding: 20px; border-radius: 8px; margin: 20px 0;">
				<h3>%s</h3>
				<p><strong>Date:</strong> %s</p>
				<p><strong>Location:</strong> %s</p>
				<p><strong>Your Seats:</strong> %d</p>
				<p><strong>Ticket Code:</strong> %s</p>
			</div>
			<p>Make sure to arrive 30 minutes before the event starts.</p>
			<p>See you there!<br>The EventHub Team</p>
		</div>`,
		event.Title, event.Date.Format("Jan 2, 2006 3:04 PM"), event.Location,
		booking.Seats, booking.TicketCode)
	subject := fmt.Sprintf("Reminder: %s Tomorrow!", event.Title)
	return m.send("event_reminder", toEmail, subject, body, nil)
}

func (m *SMTPMailer) SendWeeklyReport(toEmail string, report WeeklyReport) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<h2 style="color: #6366F1;">Weekly Sales Report</h2>
			<div style="background: #F8FAFC; padding: 20px; border-radius: 8px; margin: 20px 0;">
				<p><strong>Total Bookings This Week:</strong> %d</p>
				<p><strong>Total Revenue:</strong> $%.2f</p>
				<p><strong>New Users:</strong> %d</p>
				<p><strong>Active Events:</strong> %d</p>
			</div>
			<p>For detailed analytics, visit your admin dashboard.</p>
			<p>Best regards,<br>The EventHub Team</p>
		</div>`,
		report.TotalBookings, report.TotalRevenue, report.NewUsers, report.ActiveEvents)
	return m.send("weekly_report", toEmail, "EventHub Weekly Sales Report", body, nil)
}
