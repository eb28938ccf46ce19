// seed inserts development accounts for local testing: go run ./cmd/seed.
// Idempotent: an account whose email already exists is left untouched.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"xend-auth/backend/internal/config"
	"xend-auth/backend/internal/db"
	"xend-auth/backend/internal/identity/domain"
	"xend-auth/backend/internal/identity/repository"
	"xend-auth/backend/internal/security"
)

const devPassword = "password123"

type account struct {
	email, phone, first, last string
	role                      domain.Role
}

var accounts = []account{
	{"admin@example.com", "+15550000001", "Dev", "Admin", domain.RoleAdmin},
	{"member@example.com", "+15550000002", "Member", "User", domain.RoleUser},
}

func main() {
	cfg, err := config.LoadBase()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	repo := repository.NewPostgresRepository(conn)
	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	for _, a := range accounts {
		existing, err := repo.GetByEmail(ctx, a.email)
		if err != nil {
			log.Fatalf("seed check %s: %v", a.email, err)
		}
		if existing != nil {
			log.Printf("%s exists. Skipping.", a.email)
			continue
		}
		i := &domain.Identity{
			ID:                uuid.NewString(),
			Email:             a.email,
			PhoneNumber:       a.phone,
			PasswordHash:      passwordHash,
			FirstName:         a.first,
			LastName:          a.last,
			Role:              a.role,
			IsProfileComplete: true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := i.Validate(); err != nil {
			log.Fatalf("seed %s: %v", a.email, err)
		}
		if err := repo.Create(ctx, i); err != nil {
			log.Fatalf("create %s: %v", a.email, err)
		}
		log.Printf("created %s (%s)", a.email, a.role)
	}

	log.Println("Seed completed successfully.")
	for _, a := range accounts {
		fmt.Printf("Login: %s / %s\n", a.email, devPassword)
	}
}
