package config

import "os"

// Config captures process-level configuration for the kindmesh server.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string
	// SeedUsername is the bootstrap account excluded from the
	// first-admin rule. The original deployment seeds it at install.
	SeedUsername string
	// SeedPassword is set on the bootstrap account when the store is
	// empty. It must satisfy the password policy.
	SeedPassword string
}

// FromEnv builds a Config from environment variables so main stays lean.
// An empty DatabaseURL selects the in-memory stores (dev and tests).
func FromEnv() Config {
	cfg := Config{
		Addr:          os.Getenv("KINDMESH_ADDR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		SeedUsername:  os.Getenv("SEED_USERNAME"),
		SeedPassword:  os.Getenv("SEED_PASSWORD"),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.JWTSigningKey == "" {
		// Development fallback; override in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if cfg.SeedUsername == "" {
		cfg.SeedUsername = "Hello"
	}
	if cfg.SeedPassword == "" {
		// Development fallback; override in production.
		cfg.SeedPassword = "Hello!234"
	}
	return cfg
}
