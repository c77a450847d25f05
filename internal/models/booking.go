package models

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BookingStatusBooked    = "booked"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

type Booking struct {
	gorm.Model
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	User          *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;index" json:"eventId"`
	Event         *Event    `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Seats         int       `gorm:"not null" json:"seats"`
	TotalAmount   float64   `gorm:"not null" json:"totalAmount"`
	Status        string    `gorm:"not null;default:'booked'" json:"status"`
	PaymentStatus string    `gorm:"not null;default:'completed'" json:"paymentStatus"`
	TicketCode    string    `gorm:"unique;not null" json:"ticketCode"`
	ReminderSent  bool      `gorm:"not null;default:false" json:"reminderSent"`
}

func (booking *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if booking.TicketCode == "" {
		booking.TicketCode = NewTicketCode()
	}
	return
}

// NewTicketCode returns a globally unique, crypto-random ticket code.
func NewTicketCode() string {
	return fmt.Sprintf("TKT-%s", uuid.New().String())
}
