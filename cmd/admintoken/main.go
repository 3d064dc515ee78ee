// Command admintoken mints a bearer token for the registration report
// endpoints. It signs with ADMIN_JWT_SECRET, the same secret the server
// validates with.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "eventreg/internal/jwt_token"
)

func main() {
	subject := flag.String("subject", "", "operator the token is issued to")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" || *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: ADMIN_JWT_SECRET=... admintoken -subject <name> [-ttl 12h]")
		os.Exit(2)
	}

	token, err := jwttoken.NewJWTService(secret, jwttoken.DefaultIssuer, jwttoken.DefaultAudience).
		GenerateAdminToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
