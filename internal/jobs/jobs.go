// Package jobs runs the scheduled background work: daily event
// reminders, the weekly admin report and hourly expiry of stale
// pending bookings. Each job queries the store fresh on every run and
// a run still in flight makes the next tick a no-op.
package jobs

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/eventhub/eventhub-api/internal/helpers"
	"github.com/eventhub/eventhub-api/internal/mailer"
	"github.com/eventhub/eventhub-api/internal/metrics"
	"github.com/eventhub/eventhub-api/internal/models"
)

const pendingBookingTTL = time.Hour

type Runner struct {
	db     *gorm.DB
	mailer mailer.Mailer
	cron   *cron.Cron
}

func NewRunner(db *gorm.DB, m mailer.Mailer) *Runner {
	r := &Runner{db: db, mailer: m}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	c.AddFunc("0 9 * * *", func() {
		if err := r.SendEventReminders(time.Now()); err != nil {
			log.Printf("Error in daily reminder job: %v", err)
		}
	})
	c.AddFunc("0 8 * * 1", func() {
		if err := r.SendWeeklyReports(time.Now()); err != nil {
			log.Printf("Error in weekly report job: %v", err)
		}
	})
	c.AddFunc("0 * * * *", func() {
		count, err := r.ExpirePendingBookings(time.Now())
		if err != nil {
			log.Printf("Error in booking cleanup job: %v", err)
			return
		}
		if count > 0 {
			log.Printf("Cancelled %d expired bookings", count)
		}
	})

	r.cron = c
	return r
}

func (r *Runner) Start() {
	r.cron.Start()
	log.Println("Scheduled jobs started")
}

func (r *Runner) Stop() {
	r.cron.Stop()
}

// SendEventReminders mails every active, not-yet-reminded booking of
// events happening tomorrow. The flag is set per booking only after a
// successful send, so a failed send is retried on the next run.
func (r *Runner) SendEventReminders(now time.Time) error {
	start, end := helpers.DayRange(now.AddDate(0, 0, 1))

	var events []models.Event
	if err := r.db.Where("date >= ? AND date < ? AND status = ?", start, end, models.EventStatusActive).
		Find(&events).Error; err != nil {
		return err
	}

	for i := range events {
		event := &events[i]

		var bookings []models.Booking
		if err := r.db.Preload("User").
			Where("event_id = ? AND status = ? AND reminder_sent = ?", event.ID, models.BookingStatusBooked, false).
			Find(&bookings).Error; err != nil {
			log.Printf("Error loading bookings for event %s: %v", event.ID, err)
			continue
		}

		for j := range bookings {
			booking := &bookings[j]
			if booking.User == nil {
				continue
			}
			if err := r.mailer.SendEventReminder(booking.User.Email, booking, event); err != nil {
				log.Printf("Error sending reminder to %s: %v", booking.User.Email, err)
				continue
			}
			if err := r.db.Model(booking).Update("reminder_sent", true).Error; err != nil {
				log.Printf("Error marking reminder sent for booking %s: %v", booking.ID, err)
			}
		}
	}

	log.Printf("Sent reminders for %d events", len(events))
	return nil
}

// SendWeeklyReports aggregates the prior seven days and mails the
// summary to every admin.
func (r *Runner) SendWeeklyReports(now time.Time) error {
	weekAgo := now.AddDate(0, 0, -7)

	var report mailer.WeeklyReport
	if err := r.db.Model(&models.Booking{}).
		Where("created_at >= ? AND status = ?", weekAgo, models.BookingStatusBooked).
		Count(&report.TotalBookings).Error; err != nil {
		return err
	}
	if err := r.db.Model(&models.Booking{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("created_at >= ? AND status = ?", weekAgo, models.BookingStatusBooked).
		Scan(&report.TotalRevenue).Error; err != nil {
		return err
	}
	if err := r.db.Model(&models.User{}).
		Where("created_at >= ?", weekAgo).
		Count(&report.NewUsers).Error; err != nil {
		return err
	}
	if err := r.db.Model(&models.Event{}).
		Where("status = ? AND date >= ?", models.EventStatusActive, now).
		Count(&report.ActiveEvents).Error; err != nil {
		return err
	}

	var admins []models.User
	if err := r.db.Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		return err
	}

	for _, admin := range admins {
		if err := r.mailer.SendWeeklyReport(admin.Email, report); err != nil {
			log.Printf("Error sending weekly report to %s: %v", admin.Email, err)
		}
	}

	log.Printf("Weekly reports sent to %d admins", len(admins))
	return nil
}

// ExpirePendingBookings cancels bookings whose payment has been pending
// for over an hour and releases their seats. Each booking is handled in
// its own transaction so one failure does not block the rest.
func (r *Runner) ExpirePendingBookings(now time.Time) (int64, error) {
	cutoff := now.Add(-pendingBookingTTL)

	var stale []models.Booking
	if err := r.db.
		Where("payment_status = ? AND status = ? AND created_at < ?",
			models.PaymentStatusPending, models.BookingStatusBooked, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	var cancelled int64
	for i := range stale {
		booking := &stale[i]
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(booking).Update("status", models.BookingStatusCancelled).Error; err != nil {
				return err
			}
			return tx.Model(&models.Event{}).
				Where("id = ?", booking.EventID).
				UpdateColumn("booked_seats", gorm.Expr("booked_seats - ?", booking.Seats)).Error
		})
		if err != nil {
			log.Printf("Error expiring booking %s: %v", booking.ID, err)
			continue
		}
		metrics.IncBookingCancelled("expiry")
		cancelled++
	}

	return cancelled, nil
}
