package server

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/eventhub/eventhub-api/config"
	"github.com/eventhub/eventhub-api/internal/handlers"
	"github.com/eventhub/eventhub-api/internal/jobs"
	"github.com/eventhub/eventhub-api/internal/mailer"
	"github.com/eventhub/eventhub-api/internal/metrics"
	"github.com/eventhub/eventhub-api/internal/middleware"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	m := mailer.NewFromEnv()
	metrics.Register()

	r := gin.Default()

	setupRoutes(r, db, m)

	runner := jobs.NewRunner(db, m)
	runner.Start()
	defer runner.Stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

func setupRoutes(r *gin.Engine, db *gorm.DB, m mailer.Mailer) {
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.MailerMiddleware(m))
	r.Use(metrics.RequestCounter())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "EventHub API is running!",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/api/v1")
	{
		public.POST("/auth/register", handlers.Register)
		public.POST("/auth/login", handlers.Login)

		eventPublic := public.Group("/events")
		{
			eventPublic.GET("", handlers.ListEvents)
			eventPublic.GET("/:id", handlers.GetEvent)
		}
	}

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		bookings := protected.Group("/bookings")
		{
			bookings.POST("", handlers.CreateBooking)
			bookings.GET("", handlers.ListUserBookings)
			bookings.GET("/:id", handlers.GetBooking)
			bookings.PUT("/:id/cancel", handlers.CancelBooking)
			bookings.GET("/:id/qr", handlers.GenerateBookingQR)
		}

		protected.GET("/users/:id", handlers.GetUser)
	}

	admin := r.Group("/api/v1")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.AdminMiddleware())
	{
		eventAdmin := admin.Group("/events")
		{
			eventAdmin.POST("", handlers.CreateEvent)
			eventAdmin.PUT("/:id", handlers.UpdateEvent)
			eventAdmin.DELETE("/:id", handlers.DeleteEvent)
		}

		admin.POST("/tickets/validate", handlers.ValidateTicket)

		adminAPI := admin.Group("/admin")
		{
			adminAPI.GET("/analytics", handlers.GetAnalytics)
			adminAPI.GET("/dashboard", handlers.GetDashboard)
			adminAPI.GET("/bookings", handlers.GetAllBookings)
			adminAPI.GET("/users", handlers.ListUsers)
			adminAPI.PUT("/users/:id/role", handlers.UpdateUserRole)
			adminAPI.GET("/export/:format", handlers.ExportBookings)
		}
	}
}
