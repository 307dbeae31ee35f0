package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSecretMissing = errors.New("session secret is not configured")
	ErrDestMissing   = errors.New("dest claim missing")
)

// SessionClaims are the claims of an App Bridge session token.
type SessionClaims struct {
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// ShopDomain is the host part of the dest claim.
func (c SessionClaims) ShopDomain() string {
	dest := strings.TrimSpace(c.Dest)
	if u, err := url.Parse(dest); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(dest, "https://"), "http://"))
}

func ParseSessionToken(tokenString string, secret []byte) (*SessionClaims, error) {
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(10*time.Second),
		jwt.WithExpirationRequired(),
	)

	tok, err := parser.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected alg: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*SessionClaims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ShopDomain() == "" {
		return nil, ErrDestMissing
	}
	return claims, nil
}

// SignSessionToken mints a token for shop; used by cmd/mint-token and tests.
func SignSessionToken(secret []byte, shop, apiKey string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrSecretMissing
	}
	now := time.Now().UTC()
	shop = strings.ToLower(strings.TrimSpace(shop))

	c := SessionClaims{
		Dest: "https://" + shop,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			Audience:  jwt.ClaimStrings{apiKey},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}
