package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EventStatusActive    = "active"
	EventStatusCancelled = "cancelled"
	EventStatusCompleted = "completed"
)

const DefaultEventImageURL = "https://images.pexels.com/photos/1552617/pexels-photo-1552617.jpeg"

type Event struct {
	gorm.Model
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"not null" json:"description"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	Location    string    `gorm:"not null" json:"location"`
	Capacity    int       `gorm:"not null" json:"capacity"`
	Price       float64   `gorm:"not null" json:"price"`
	Category    string    `gorm:"not null" json:"category"`
	ImageURL    string    `json:"imageUrl"`
	Status      string    `gorm:"not null;default:'active'" json:"status"`
	// BookedSeats is the sum of seats across active bookings. It is only
	// ever changed through conditional updates so it can never exceed
	// Capacity (see handlers.CreateBooking).
	BookedSeats    int       `gorm:"not null;default:0" json:"bookedSeats"`
	AvailableSeats int       `gorm:"-" json:"availableSeats"`
	CreatedByID    uuid.UUID `gorm:"type:uuid" json:"createdBy"`
	Bookings       []Booking `gorm:"foreignKey:EventID" json:"bookings,omitempty"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ImageURL == "" {
		event.ImageURL = DefaultEventImageURL
	}
	return
}

func (event *Event) AfterFind(tx *gorm.DB) (err error) {
	event.AvailableSeats = event.Capacity - event.BookedSeats
	return
}
