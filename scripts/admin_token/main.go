package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/thepathwise/intake/api"
	"github.com/thepathwise/intake/internal/config"
)

// Prints a bearer token for the /v1/admin routes.
func main() {
	subject := flag.String("sub", "", "Operator identity recorded in the token")
	ttl := flag.Duration("ttl", 0, "Token lifetime (default from config)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig("")
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *ttl <= 0 {
		*ttl = cfg.TokenDuration
	}

	token, err := api.IssueAdminToken(cfg.JWTSecret, *subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Token error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
