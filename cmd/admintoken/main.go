// Command admintoken mints an admin API token pair for an operator.
//
//	JWT_SECRET=... admintoken -operator alice -role viewer
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"crm-webhook/internal/auth"
	"crm-webhook/internal/config"
	"crm-webhook/internal/rbac"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "admintoken:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, now time.Time) error {
	fs := flag.NewFlagSet("admintoken", flag.ContinueOnError)
	operator := fs.String("operator", "", "operator name recorded in the token")
	role := fs.String("role", rbac.RoleViewer, "admin or viewer")
	envFile := fs.String("env", ".env", "optional env file with JWT_* settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *operator == "" {
		return fmt.Errorf("-operator is required")
	}
	if !rbac.Known(*role) {
		return fmt.Errorf("unknown role %q", *role)
	}

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("load %s: %w", *envFile, err)
		}
	}

	cfg := config.AuthConfig{
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		AccessTokenTTL:  envDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: envDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
	}
	m, err := auth.NewManager(cfg)
	if err != nil {
		return err
	}
	pair, err := m.IssuePair(now, *operator, *role)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pair)
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
