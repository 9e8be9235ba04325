package main

import (
	"context"
	"errors"
	"log"
	"os"

	"exchange/internal/config"
	"exchange/internal/models"
	"exchange/internal/repositories"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminUsername == "" || adminPassword == "" {
		log.Fatal("ADMIN_USERNAME and ADMIN_PASSWORD must be set in environment")
	}

	db, err := repositories.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()
	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	users := repositories.NewUserRepository(db)

	_, err = users.GetByUsername(ctx, adminUsername)
	if err == nil {
		log.Println("Admin user already exists")
		return
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		log.Fatalf("Failed to look up admin user: %v", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	admin := &models.User{
		Username:        adminUsername,
		Email:           os.Getenv("ADMIN_EMAIL"),
		PasswordHash:    string(hashedPassword),
		IsAdmin:         true,
		Balance:         decimal.Zero,
		BalanceCurrency: "EUR",
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatal("Failed to create admin user:", err)
	}

	log.Println("Admin account created successfully")
}
