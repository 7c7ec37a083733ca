// Package config holds the service's tunable constants and its
// environment-sourced configuration.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Sampling schedule. Twelve 5-second windows per minute-level trigger.
const (
	SampleIntervalSeconds = 5
	MessagesPerMinute     = 12
)

// Network and store timeouts
const (
	FetchTimeout    = 10 * time.Second
	StoreTimeout    = 10 * time.Second
	DispatchTimeout = 30 * time.Second
)

// Queue sizing and redelivery
const (
	QueueCapacity     = 256
	QueueBatchSize    = 10
	QueueMaxReceive   = 5
	RedeliveryDelay   = 20 * time.Second
	QueuePollInterval = 250 * time.Millisecond
)

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultMockPort    = "3000"
	DefaultDataDir     = "./data/countwatch"
	DefaultMaxMemoryMB = 48
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
	BadgerGCInterval   = 10 * time.Minute
)

// Server holds the collector service configuration.
type Server struct {
	APIBaseURL  string
	DataDir     string
	Port        string
	MaxMemoryMB int64
}

// LoadServer loads service configuration from environment variables.
// COUNTWATCH_API_BASE_URL is required; its absence is a startup error.
func LoadServer() (Server, error) {
	baseURL := os.Getenv("COUNTWATCH_API_BASE_URL")
	if baseURL == "" {
		return Server{}, fmt.Errorf("COUNTWATCH_API_BASE_URL environment variable is not set")
	}

	dataDir := getEnv("COUNTWATCH_DATA_DIR", DefaultDataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return Server{}, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	return Server{
		APIBaseURL:  baseURL,
		DataDir:     dataDir,
		Port:        getEnv("PORT", DefaultPort),
		MaxMemoryMB: getEnvInt64("COUNTWATCH_MAX_MEMORY_MB", DefaultMaxMemoryMB),
	}, nil
}

// MockAPI holds the mock counter API configuration.
type MockAPI struct {
	Port string
}

// LoadMockAPI loads mock API configuration from environment variables.
func LoadMockAPI() MockAPI {
	return MockAPI{Port: getEnv("PORT", DefaultMockPort)}
}

// getEnv gets a string from an environment variable or returns the default.
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt64 gets an int64 from an environment variable or returns the default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}
