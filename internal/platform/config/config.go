package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	defaultEnvFile      = ".env"
	defaultBatchSize    = 50
	defaultBatchWorkers = 8
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	API    APIConfig
	Import ImportConfig
}

// APIConfig carries connection and credential settings of the remote commerce
// project.
type APIConfig struct {
	BaseURL      string
	AuthURL      string
	ProjectKey   string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// AccessToken bypasses the client-credentials flow when set.
	AccessToken string
}

// ImportConfig tunes batch ingestion.
type ImportConfig struct {
	// BatchSize is how many NDJSON records form one concurrently processed chunk.
	BatchSize int
	// BatchWorkers bounds concurrency within a chunk.
	BatchWorkers int
}

// ValidationError is returned when required configuration fields are missing
// or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	fields := append([]string(nil), e.fields...)
	sort.Strings(fields)
	return fmt.Sprintf("config: missing or invalid fields: %s", strings.Join(fields, ", "))
}

// Fields lists the offending configuration fields.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises configuration loading.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided
// maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the tool configuration by combining defaults, .env overrides
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		API: APIConfig{
			BaseURL:      stringWithDefault(lookup, "SYNC_API_URL", ""),
			AuthURL:      stringWithDefault(lookup, "SYNC_AUTH_URL", ""),
			ProjectKey:   stringWithDefault(lookup, "SYNC_PROJECT_KEY", ""),
			ClientID:     stringWithDefault(lookup, "SYNC_CLIENT_ID", ""),
			ClientSecret: stringWithDefault(lookup, "SYNC_CLIENT_SECRET", ""),
			Scopes:       csvWithDefault(lookup, "SYNC_SCOPES"),
			AccessToken:  stringWithDefault(lookup, "SYNC_ACCESS_TOKEN", ""),
		},
		Import: ImportConfig{
			BatchSize:    intWithDefault(lookup, "SYNC_BATCH_SIZE", defaultBatchSize),
			BatchWorkers: intWithDefault(lookup, "SYNC_BATCH_WORKERS", defaultBatchWorkers),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	if cfg.API.BaseURL == "" {
		missing = append(missing, "API.BaseURL")
	}
	if cfg.API.ProjectKey == "" {
		missing = append(missing, "API.ProjectKey")
	}
	if cfg.API.AccessToken == "" {
		if cfg.API.ClientID == "" {
			missing = append(missing, "API.ClientID")
		}
		if cfg.API.ClientSecret == "" {
			missing = append(missing, "API.ClientSecret")
		}
		if cfg.API.AuthURL == "" {
			missing = append(missing, "API.AuthURL")
		}
	}
	if cfg.Import.BatchSize <= 0 {
		missing = append(missing, "Import.BatchSize")
	}
	if cfg.Import.BatchWorkers <= 0 {
		missing = append(missing, "Import.BatchWorkers")
	}
	if missing != nil {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}
