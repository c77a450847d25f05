package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/eventhub/eventhub-api/internal/models"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
	}, nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := enableUUIDExtension(db); err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&models.User{}, &models.Event{}, &models.Booking{})
	if err != nil {
		return nil, err
	}

	seedAdminUser(db)
	seedSampleEvents(db)

	return db, nil
}

// seedAdminUser guarantees at least one admin account exists so the
// admin surface is reachable on a fresh database.
func seedAdminUser(db *gorm.DB) {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@eventhub.com"
	}

	var existing models.User
	if result := db.Where("email = ?", email).First(&existing); result.Error == nil {
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing admin password: %v", err)
		return
	}

	admin := models.User{
		Name:     "Admin User",
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Printf("Error seeding admin user: %v", err)
	}
}

func seedSampleEvents(db *gorm.DB) {
	var count int64
	db.Model(&models.Event{}).Count(&count)
	if count > 0 {
		return
	}

	var admin models.User
	if err := db.Where("role = ?", models.RoleAdmin).First(&admin).Error; err != nil {
		return
	}

	events := []models.Event{
		{
			Title:       "Tech Conference 2025",
			Description: "Join industry leaders for the biggest tech conference of the year.",
			Date:        time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
			Location:    "San Francisco, CA",
			Capacity:    500,
			Price:       299,
			Category:    "Technology",
			CreatedByID: admin.ID,
		},
		{
			Title:       "Music Festival Summer",
			Description: "Three days of amazing music and entertainment.",
			Date:        time.Date(2025, 7, 20, 18, 0, 0, 0, time.UTC),
			Location:    "Austin, TX",
			Capacity:    1000,
			Price:       199,
			Category:    "Music",
			CreatedByID: admin.ID,
		},
		{
			Title:       "Business Summit",
			Description: "Network with entrepreneurs and business leaders.",
			Date:        time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC),
			Location:    "New York, NY",
			Capacity:    300,
			Price:       399,
			Category:    "Business",
			CreatedByID: admin.ID,
		},
		{
			Title:       "Art Exhibition",
			Description: "Contemporary art from emerging artists.",
			Date:        time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC),
			Location:    "Los Angeles, CA",
			Capacity:    200,
			Price:       49,
			Category:    "Arts",
			CreatedByID: admin.ID,
		},
	}

	for _, event := range events {
		if err := db.Create(&event).Error; err != nil {
			log.Printf("Error seeding event %q: %v", event.Title, err)
		}
	}
}
