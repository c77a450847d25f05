package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eventhub/eventhub-api/internal/export"
	"github.com/eventhub/eventhub-api/internal/helpers"
	"github.com/eventhub/eventhub-api/internal/models"
)

type PopularEvent struct {
	EventID  uuid.UUID `json:"eventId"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Bookings int64     `json:"bookings"`
	Seats    int64     `json:"seats"`
	Revenue  float64   `json:"revenue"`
}

type MonthlyRevenue struct {
	Month    string  `json:"month"`
	Revenue  float64 `json:"revenue"`
	Bookings int64   `json:"bookings"`
}

type CategoryStat struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

func popularEvents(gormDB *gorm.DB, limit int) ([]PopularEvent, error) {
	var rows []struct {
		EventID  uuid.UUID
		Bookings int64
		Seats    int64
		Revenue  float64
	}
	err := gormDB.Model(&models.Booking{}).
		Select("event_id, COUNT(*) AS bookings, SUM(seats) AS seats, SUM(total_amount) AS revenue").
		Where("status = ?", models.BookingStatusBooked).
		Group("event_id").
		Order("bookings DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]PopularEvent, 0, len(rows))
	for _, row := range rows {
		var event models.Event
		if err := gormDB.Select("id, title, category").Where("id = ?", row.EventID).First(&event).Error; err != nil {
			continue
		}
		result = append(result, PopularEvent{
			EventID:  row.EventID,
			Title:    event.Title,
			Category: event.Category,
			Bookings: row.Bookings,
			Seats:    row.Seats,
			Revenue:  row.Revenue,
		})
	}
	return result, nil
}

func bookedRevenue(gormDB *gorm.DB, since *time.Time) (float64, error) {
	var total float64
	query := gormDB.Model(&models.Booking{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("status = ?", models.BookingStatusBooked)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	err := query.Scan(&total).Error
	return total, err
}

func GetAnalytics(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var totalBookings, totalEvents, totalUsers int64
	if err := gormDB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusBooked).Count(&totalBookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := gormDB.Model(&models.Event{}).Where("status = ?", models.EventStatusActive).Count(&totalEvents).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := gormDB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	totalRevenue, err := bookedRevenue(gormDB, nil)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	popular, err := popularEvents(gormDB, 5)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"analytics": gin.H{
			"totalBookings": totalBookings,
			"totalRevenue":  totalRevenue,
			"totalEvents":   totalEvents,
			"totalUsers":    totalUsers,
			"popularEvents": popular,
		},
	})
}

func GetDashboard(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var totalUsers, totalEvents, totalBookings, activeBookings int64
	gormDB.Model(&models.User{}).Count(&totalUsers)
	gormDB.Model(&models.Event{}).Where("status = ?", models.EventStatusActive).Count(&totalEvents)
	gormDB.Model(&models.Booking{}).Count(&totalBookings)
	gormDB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusBooked).Count(&activeBookings)

	totalRevenue, err := bookedRevenue(gormDB, nil)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	monthly, err := monthlyRevenue(gormDB)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	var categories []CategoryStat
	if err := gormDB.Model(&models.Event{}).
		Select("category, COUNT(*) AS count").
		Where("status = ?", models.EventStatusActive).
		Group("category").
		Order("count DESC").
		Scan(&categories).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	popular, err := popularEvents(gormDB, 5)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	var recentBookings []models.Booking
	if err := gormDB.Preload("User").Preload("Event").
		Order("created_at DESC").Limit(10).Find(&recentBookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"totalUsers":     totalUsers,
			"totalEvents":    totalEvents,
			"totalBookings":  totalBookings,
			"activeBookings": activeBookings,
			"totalRevenue":   totalRevenue,
		},
		"charts": gin.H{
			"monthlyRevenue": monthly,
			"categoryStats":  categories,
		},
		"popularEvents":  popular,
		"recentBookings": recentBookings,
	})
}

// monthlyRevenue groups booked revenue per calendar month. The grouping
// happens in Go so it works identically on every SQL dialect.
func monthlyRevenue(gormDB *gorm.DB) ([]MonthlyRevenue, error) {
	var rows []struct {
		CreatedAt   time.Time
		TotalAmount float64
	}
	if err := gormDB.Model(&models.Booking{}).
		Select("created_at, total_amount").
		Where("status = ?", models.BookingStatusBooked).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	byMonth := make(map[string]*MonthlyRevenue)
	for _, row := range rows {
		key := row.CreatedAt.Format("2006-01")
		entry, ok := byMonth[key]
		if !ok {
			entry = &MonthlyRevenue{Month: key}
			byMonth[key] = entry
		}
		entry.Revenue += row.TotalAmount
		entry.Bookings++
	}

	result := make([]MonthlyRevenue, 0, len(byMonth))
	for _, entry := range byMonth {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result, nil
}

func GetAllBookings(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var bookings []models.Booking
	if err := gormDB.Preload("User").Preload("Event").
		Order("created_at DESC").Find(&bookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving bookings.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"bookings": bookings,
	})
}

// ExportBookings streams all bookings (optionally filtered by event and
// creation date range) as csv, xlsx or json.
func ExportBookings(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	query := gormDB.Preload("User").Preload("Event").Order("created_at DESC")
	if eventID := c.Query("event_id"); eventID != "" {
		query = query.Where("event_id = ?", eventID)
	}
	if startDate := c.Query("start_date"); startDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid start_date. Use YYYY-MM-DD.")
			return
		}
		query = query.Where("created_at >= ?", start)
	}
	if endDate := c.Query("end_date"); endDate != "" {
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid end_date. Use YYYY-MM-DD.")
			return
		}
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
	}

	var bookings []models.Booking
	if err := query.Find(&bookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving bookings.")
		return
	}

	filename := fmt.Sprintf("bookings-%s", time.Now().Format("2006-01-02"))

	switch c.Param("format") {
	case "csv":
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, bookings); err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate CSV.")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	case "xlsx":
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, bookings); err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate XLSX.")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".xlsx"))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	case "json":
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"bookings": bookings,
		})
	default:
		helpers.RespondWithError(c, http.StatusBadRequest, "Unsupported export format. Use csv, xlsx or json.")
	}
}
