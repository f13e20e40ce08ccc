// Command token mints a bearer token for local testing of the booking API.
//
//	go run ./cmd/token -sub staff-1 -role STAFF -ttl 2h
//
// The signing secret is read from JWT_SECRET (a .env file is honoured).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/gym-booking/internal/utils"
)

func main() {
	sub := flag.String("sub", "dev-user", "token subject (user id)")
	role := flag.String("role", "STAFF", "role claim, e.g. ADMIN, STAFF, TRAINER, MEMBER")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	tok, err := utils.NewAccessToken(secret, *sub, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
