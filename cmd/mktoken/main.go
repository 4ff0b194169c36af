// mktoken mints a development access token for exercising the API by hand.
// Tokens are normally issued by the auth service; this uses the same secret.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/pulse/pulse-api/internal/config"
	"github.com/pulse/pulse-api/internal/pkg/jwt"
)

func main() {
	userID := flag.String("user", "", "user ID (random when empty)")
	username := flag.String("username", "dev", "username claim")
	flag.Parse()

	cfg := config.Load()

	id := uuid.New()
	if *userID != "" {
		parsed, err := uuid.Parse(*userID)
		if err != nil {
			log.Fatalf("Invalid user ID: %v", err)
		}
		id = parsed
	}

	svc := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	token, err := svc.GenerateAccessToken(id, *username)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("user_id: %s\n", id)
	fmt.Printf("token:   %s\n", token)
}
