package handlers

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eventhub/eventhub-api/internal/mailer"
	"github.com/eventhub/eventhub-api/internal/middleware"
	"github.com/eventhub/eventhub-api/internal/models"
)

const testJWTSecret = "test-secret"

// fakeMailer is safe for concurrent use; the overbooking test sends
// from many goroutines at once.
type fakeMailer struct {
	mu            sync.Mutex
	welcomes      int
	confirmations int
	reminders     int
	reports       int
}

func (f *fakeMailer) SendWelcome(toEmail, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomes++
	return nil
}

func (f *fakeMailer) SendBookingConfirmation(toEmail string, b *models.Booking, e *models.Event, qrPNG []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations++
	return nil
}

func (f *fakeMailer) SendEventReminder(toEmail string, b *models.Booking, e *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders++
	return nil
}

func (f *fakeMailer) SendWeeklyReport(toEmail string, r mailer.WeeklyReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports++
	return nil
}

func (f *fakeMailer) sent() (welcomes, confirmations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.welcomes, f.confirmations
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps every goroutine on the same in-memory
	// database and serialises writes the way postgres row locks would.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Event{}, &models.Booking{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func setupRouter(t *testing.T, db *gorm.DB, m mailer.Mailer) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", testJWTSecret)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))
	if m != nil {
		r.Use(middleware.MailerMiddleware(m))
	}

	public := r.Group("/api/v1")
	public.POST("/auth/register", Register)
	public.POST("/auth/login", Login)
	public.GET("/events", ListEvents)
	public.GET("/events/:id", GetEvent)

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware())
	protected.POST("/bookings", CreateBooking)
	protected.GET("/bookings", ListUserBookings)
	protected.GET("/bookings/:id", GetBooking)
	protected.PUT("/bookings/:id/cancel", CancelBooking)
	protected.GET("/bookings/:id/qr", GenerateBookingQR)
	protected.GET("/users/:id", GetUser)

	admin := r.Group("/api/v1")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.AdminMiddleware())
	admin.POST("/events", CreateEvent)
	admin.PUT("/events/:id", UpdateEvent)
	admin.DELETE("/events/:id", DeleteEvent)
	admin.POST("/tickets/validate", ValidateTicket)
	admin.GET("/admin/analytics", GetAnalytics)
	admin.GET("/admin/dashboard", GetDashboard)
	admin.GET("/admin/bookings", GetAllBookings)
	admin.GET("/admin/users", ListUsers)
	admin.PUT("/admin/users/:id/role", UpdateUserRole)
	admin.GET("/admin/export/:format", ExportBookings)

	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email, role string) models.User {
	t.Helper()
	user := models.User{
		ID:       uuid.New(),
		Name:     "Test User",
		Email:    email,
		Password: "not-a-real-hash",
		Role:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestEvent(t *testing.T, db *gorm.DB, capacity int, price float64, date time.Time) models.Event {
	t.Helper()
	event := models.Event{
		ID:          uuid.New(),
		Title:       fmt.Sprintf("Event %s", uuid.New().String()[:8]),
		Description: "A test event",
		Date:        date,
		Location:    "Testville",
		Capacity:    capacity,
		Price:       price,
		Category:    "Technology",
		Status:      models.EventStatusActive,
		CreatedByID: uuid.New(),
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return event
}

func newJSONBody(s string) *bytes.Buffer {
	return bytes.NewBufferString(s)
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return "Bearer " + signed
}
