// Command token signs a bearer token for local development and tests against
// a running lending service. It reads JWT_SECRET and JWT_ISSUER like the service.
package main

import (
	"flag"
	"fmt"
	stdLog "log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Astemirdum/librakeeper/pkg/auth"
)

func main() {
	var (
		sub   = flag.String("sub", "", "user id (required)")
		name  = flag.String("name", "", "display name")
		email = flag.String("email", "", "email address")
		role  = flag.String("role", string(auth.RoleUser), "USER or ADMIN")
		ttl   = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()
	if *sub == "" {
		flag.Usage()
		stdLog.Fatal("-sub is required")
	}

	_ = godotenv.Load() //nolint:errcheck
	var cfg auth.Config
	if err := envconfig.Process("", &cfg); err != nil {
		stdLog.Fatal("envconfig ", err)
	}
	if cfg.JWTSecret == "" {
		stdLog.Fatal("JWT_SECRET is required")
	}

	token, err := auth.NewToken(cfg, auth.Identity{
		UserID: *sub,
		Name:   *name,
		Email:  *email,
		Role:   auth.Role(*role),
	}, *ttl)
	if err != nil {
		stdLog.Fatal("auth.NewToken ", err)
	}
	fmt.Println(token)
}
