package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/eventhub/eventhub-api/internal/helpers"
	"github.com/eventhub/eventhub-api/internal/models"
)

func buildQRPayload(booking *models.Booking) string {
	secret := os.Getenv("JWT_SECRET")
	signature := ticketSignature(booking.ID, booking.EventID, booking.UserID, secret)
	return fmt.Sprintf("booking:%s;event:%s;signature:%s",
		booking.ID.String(),
		booking.EventID.String(),
		signature,
	)
}

func ticketSignature(bookingID, eventID, userID uuid.UUID, secret string) string {
	data := fmt.Sprintf("%s:%s:%s", bookingID.String(), eventID.String(), userID.String())
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func extractBookingIDFromQRData(qrData string) (uuid.UUID, error) {
	parts := strings.Split(qrData, ";")
	if len(parts) != 3 || !strings.HasPrefix(parts[0], "booking:") || !strings.HasPrefix(parts[2], "signature:") {
		return uuid.Nil, fmt.Errorf("invalid QR data format")
	}
	return uuid.Parse(strings.TrimPrefix(parts[0], "booking:"))
}

func validateQRSignature(booking *models.Booking, qrData string) bool {
	parts := strings.Split(qrData, ";")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "signature:") {
		return false
	}

	secret := os.Getenv("JWT_SECRET")
	signature := strings.TrimPrefix(parts[2], "signature:")
	expected := ticketSignature(booking.ID, booking.EventID, booking.UserID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GenerateBookingQR renders the caller's ticket as a PNG QR code.
func GenerateBookingQR(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User not authenticated.")
		return
	}
	role, _ := c.Get("user_role")

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid booking ID.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var booking models.Booking
	if err := gormDB.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Booking not found.")
		return
	}

	if booking.UserID != userID && role != models.RoleAdmin {
		helpers.RespondWithError(c, http.StatusForbidden, "Not authorized to access this booking.")
		return
	}

	if booking.Status != models.BookingStatusBooked {
		helpers.RespondWithError(c, http.StatusForbidden, "Booking is not active.")
		return
	}

	qrImage, err := qrcode.Encode(buildQRPayload(&booking), qrcode.Medium, 256)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate QR code.")
		return
	}

	c.Data(http.StatusOK, "image/png", qrImage)
}

// ValidateTicket is the entry-scan endpoint: an admin posts a scanned
// QR payload, the signature is verified and the booking is marked
// completed so the same ticket cannot be used twice.
func ValidateTicket(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var req struct {
		QRData string `json:"qrData" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	bookingID, err := extractBookingIDFromQRData(req.QRData)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid QR code format.")
		return
	}

	var booking models.Booking
	if err := gormDB.Preload("Event").Where("id = ?", bookingID).First(&booking).Error; err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Booking not found.")
		return
	}

	if !validateQRSignature(&booking, req.QRData) {
		helpers.RespondWithError(c, http.StatusForbidden, "Invalid QR code signature.")
		return
	}

	if booking.Status == models.BookingStatusCompleted {
		helpers.RespondWithError(c, http.StatusForbidden, "Ticket already used.")
		return
	}
	if booking.Status != models.BookingStatusBooked {
		helpers.RespondWithError(c, http.StatusForbidden, "Booking is not active.")
		return
	}

	if err := gormDB.Model(&booking).Update("status", models.BookingStatusCompleted).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to validate ticket.")
		return
	}

	eventTitle := ""
	if booking.Event != nil {
		eventTitle = booking.Event.Title
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ticket validated successfully.",
		"ticket": gin.H{
			"ticketCode": booking.TicketCode,
			"eventTitle": eventTitle,
			"seats":      booking.Seats,
		},
	})
}
