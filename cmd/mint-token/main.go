package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ETAnderson/merchantdesk/internal/api/auth"
)

// mint-token prints a session token for local calls to /app/sales.
func main() {
	var (
		shop   = flag.String("shop", "dev-shop.myshopify.com", "shop domain for the dest claim")
		ttl    = flag.Duration("ttl", 30*time.Minute, "token TTL (e.g. 30m, 2h)")
		apiKey = flag.String("api-key", "dev-api-key", "app API key (aud claim)")
		envKey = flag.String("secret-env", "SHOPIFY_API_SECRET", "env var containing the app's API secret")
	)
	flag.Parse()

	secret := strings.TrimSpace(os.Getenv(*envKey))
	if secret == "" {
		fmt.Fprintf(os.Stderr, "%s is not set\n", *envKey)
		os.Exit(1)
	}

	s, err := auth.SignSessionToken([]byte(secret), *shop, *apiKey, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(s)
}
