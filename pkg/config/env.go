package config

import (
	"os"
	"strings"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// GetEnv returns the environment variable value, or the default when unset
// or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// RequireEnv returns the environment variable value and panics when unset.
// For configuration that must never be defaulted in production.
func RequireEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

// GetEnvironment returns the lowercased deployment environment, defaulting
// to development.
func GetEnvironment() string {
	return strings.ToLower(GetEnv("STOCKFLOW_SERVER_ENVIRONMENT", EnvDevelopment))
}

func IsDevelopment() bool { return GetEnvironment() == EnvDevelopment }

func IsStaging() bool { return GetEnvironment() == EnvStaging }

func IsProduction() bool { return GetEnvironment() == EnvProduction }

// IsProductionLike reports whether the environment should be held to
// production configuration requirements (staging included).
func IsProductionLike() bool {
	return IsStaging() || IsProduction()
}
