// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrConfigMissing is returned by Load when a required variable is unset.
var ErrConfigMissing = errors.New("required configuration missing")

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ClientID       string
	ClientSecret   string
	IDTokenKey     []byte
	SecretKey      []byte // nil when at-rest session encryption is disabled.
	ListenAddr     string
	DBPath         string
	MaxConcurrency int // 0 means unbounded fan-out.
}

// Load reads configuration from environment variables and returns a validated Config.
// Required: RUNPANEL_CLIENT_ID, RUNPANEL_CLIENT_SECRET, RUNPANEL_ID_TOKEN_KEY (base64).
// Optional variables with defaults: RUNPANEL_LISTEN_ADDR (127.0.0.1:8080),
// RUNPANEL_DB_PATH (runpanel.db), RUNPANEL_MAX_CONCURRENCY (0),
// RUNPANEL_SECRET_KEY (unset, 64 hex characters).
func Load() (*Config, error) {
	clientID, err := required("RUNPANEL_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	clientSecret, err := required("RUNPANEL_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	rawIDTokenKey, err := required("RUNPANEL_ID_TOKEN_KEY")
	if err != nil {
		return nil, err
	}
	idTokenKey, err := base64.StdEncoding.DecodeString(rawIDTokenKey)
	if err != nil {
		return nil, fmt.Errorf("RUNPANEL_ID_TOKEN_KEY is not valid base64: %w", err)
	}
	if len(idTokenKey) == 0 {
		return nil, fmt.Errorf("%w: RUNPANEL_ID_TOKEN_KEY decodes to an empty key", ErrConfigMissing)
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("RUNPANEL_SECRET_KEY"); ok && v != "" {
		if len(v) != 64 {
			return nil, fmt.Errorf("RUNPANEL_SECRET_KEY must be 64 hex characters (32 bytes), got %d characters", len(v))
		}
		secretKey, err = hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("RUNPANEL_SECRET_KEY is not valid hex: %w", err)
		}
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("RUNPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "runpanel.db"
	if v, ok := os.LookupEnv("RUNPANEL_DB_PATH"); ok {
		dbPath = v
	}

	maxConcurrency := 0
	if v, ok := os.LookupEnv("RUNPANEL_MAX_CONCURRENCY"); ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("RUNPANEL_MAX_CONCURRENCY has invalid value %q: expected a non-negative integer", v)
		}
		maxConcurrency = parsed
	}

	return &Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		IDTokenKey:     idTokenKey,
		SecretKey:      secretKey,
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		MaxConcurrency: maxConcurrency,
	}, nil
}

func required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrConfigMissing, key)
	}
	return v, nil
}
