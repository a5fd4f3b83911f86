package util

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/opsgraph/opsgraph/pkg/logger"
)

// LoadEnv loads variables from a .env file when one is present. Missing
// files are not an error; the system environment is used as-is.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}

// GetEnv returns the value of an environment variable, or "" when unset.
func GetEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return ""
	}
	return value
}

// GetEnvString returns the value of an environment variable, or the
// default when unset.
func GetEnvString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetEnvBool returns the boolean value of an environment variable. Only the
// literal strings "true" and "false" are recognized; anything else yields
// the default.
func GetEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if value == "true" || value == "false" {
		return value == "true"
	}
	return defaultValue
}
