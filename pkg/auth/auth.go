package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

var ErrInvalidToken = errors.New("invalid token")

type Config struct {
	JWTSecret string `yaml:"jwtSecret" envconfig:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" envconfig:"JWT_ISSUER" default:"librakeeper"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Claims struct {
	jwt.RegisteredClaims
	Profile Profile `json:"profile"`
}

func NewToken(cfg Config, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Profile: Profile{Name: id.Name, Email: id.Email, Role: id.Role},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

func ParseToken(cfg Config, token string) (Identity, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, errors.Wrap(ErrInvalidToken, "empty subject")
	}
	role := claims.Profile.Role
	if role != RoleAdmin {
		role = RoleUser
	}
	return Identity{
		UserID: claims.Subject,
		Name:   claims.Profile.Name,
		Email:  claims.Profile.Email,
		Role:   role,
	}, nil
}

type contextKey int

const identityKey contextKey = iota + 1

func SetAuthContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}
