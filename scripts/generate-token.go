// Package main is a development utility for minting a bearer token the way
// the Medcore identity service would. The server itself never issues tokens,
// so local development needs a way to produce one that verifies against a
// known secret. Prints the token and a ready-to-paste curl header. Do not use
// generated tokens outside local development — real deployments get tokens
// from the identity service.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := flag.String("secret", "", "signing secret (must match security.jwt_secret)")
	userID := flag.String("user", "dev-user-1", "user_id claim")
	email := flag.String("email", "dev@medcore.local", "email claim")
	name := flag.String("name", "Dev User", "name claim")
	role := flag.String("role", "admin", "role claim")
	orgID := flag.String("org", "", "org_id claim (optional)")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		log.Fatal("-secret is required; use the value of security.jwt_secret")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": *userID,
		"email":   *email,
		"name":    *name,
		"role":    *role,
		"iat":     now.Unix(),
		"exp":     now.Add(*ttl).Unix(),
	}
	if *orgID != "" {
		claims["org_id"] = *orgID
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/me/permissions\n", token)
}
