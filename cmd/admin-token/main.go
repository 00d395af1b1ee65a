// Command admin-token mints an operator token for the protected routes
// (POST /set-room and POST /show-detail).
//
// Usage:
//
//	ADMIN_JWT_SECRET=... go run ./cmd/admin-token [subject] [ttl]
//
// The subject defaults to "operator" and the ttl to 720h. The token is
// printed to stdout for use as "Authorization: Bearer <token>".
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/strefethen/sonos-display-go/internal/auth"
)

func main() {
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		log.Fatal("ADMIN_JWT_SECRET environment variable is required")
	}

	subject := "operator"
	if len(os.Args) > 1 {
		subject = os.Args[1]
	}
	ttl := auth.DefaultTokenTTL
	if len(os.Args) > 2 {
		parsed, err := time.ParseDuration(os.Args[2])
		if err != nil || parsed <= 0 {
			log.Fatalf("invalid ttl %q: use a Go duration such as 24h", os.Args[2])
		}
		ttl = parsed
	}

	token, err := auth.GenerateToken(secret, subject, ttl)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}
	log.Printf("Token for %s expires %s", subject, time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Println(token)
}
