package usecase

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cast"

	"storefront-backend/internal/domain"
)

// AuthService verifies bearer tokens minted by the identity provider. Tokens
// are HS256 JWTs whose "sub" claim is the account id.
type AuthService struct {
	JWTSecret string
}

func (s *AuthService) Verify(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrUnauthorized("missing bearer token")
	}
	if s.JWTSecret == "" {
		return domain.Identity{}, ErrUnauthorized("token verification not configured")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return domain.Identity{}, ErrUnauthorized("invalid token")
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, ErrUnauthorized("invalid claims")
	}
	id := domain.NewIdentity(cast.ToString(m["sub"]), cast.ToString(m["email"]))
	if id.UserID == "" {
		return domain.Identity{}, ErrUnauthorized("token has no subject")
	}
	return id, nil
}

func (s *AuthService) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   id.UserID,
		"email": id.Email,
		"role":  "authenticated",
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.JWTSecret))
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
