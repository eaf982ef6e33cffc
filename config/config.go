package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendLocal     = "local"
	BackendAzureBlob = "azure-blob"
	BackendCosmos    = "cosmos"
	BackendMongo     = "mongo"
)

type Config struct {
	HTTPAddr       string
	StorageBackend string
	LocalDir       string
	DefaultLang    string

	Azure  AzureConfig
	Cosmos CosmosConfig
	Mongo  MongoConfig
	Auth   AuthConfig
	Image  ImageConfig
	Sweep  SweepConfig
	Log    LogConfig
}

type AzureConfig struct {
	Account    string
	SASToken   string
	Container  string
	ServiceURL string
}

// Enabled reports whether enough is set to reach a blob container.
func (c AzureConfig) Enabled() bool {
	return c.ServiceURL != "" || (c.Account != "" && c.SASToken != "")
}

// URL builds the SAS-authenticated service URL. The token may be
// given with or without its leading '?'.
func (c AzureConfig) URL() string {
	base := c.ServiceURL
	if base == "" {
		base = fmt.Sprintf("https://%s.blob.core.windows.net/", c.Account)
	}
	if c.SASToken == "" {
		return base
	}
	return base + "?" + strings.TrimPrefix(c.SASToken, "?")
}

type CosmosConfig struct {
	Endpoint         string
	Key              string
	ConnectionString string
	Database         string
	Container        string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AdminPasswordHash string
}

// Enabled reports whether deletes must carry a bearer token.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

type ImageConfig struct {
	MaxBytes int64
	MaxEdge  int
}

type SweepConfig struct {
	Schedule string
	Grace    time.Duration
}

// Enabled is false for an empty or "off" schedule.
func (c SweepConfig) Enabled() bool {
	return c.Schedule != "" && c.Schedule != "off"
}

type LogConfig struct {
	Mode string
	File string
}

// Load reads .env (or .env.production when APP_ENV=production) into the
// process environment and builds a Config from it. A missing env file is
// not an error; the variables may come from the real environment.
func Load() (*Config, error) {
	file := ".env"
	if os.Getenv("APP_ENV") == "production" {
		file = ".env.production"
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	mongoTimeout, err := durationEnv("MONGO_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	grace, err := durationEnv("ORPHAN_GRACE", time.Hour)
	if err != nil {
		return nil, err
	}
	maxBytes, err := intEnv("MAX_IMAGE_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	maxEdge, err := intEnv("MAX_IMAGE_EDGE", 2048)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendLocal)),
		LocalDir:       getEnv("LOCAL_DIR", "./.data"),
		DefaultLang:    getEnv("DEFAULT_LANG", "sr"),
		Azure: AzureConfig{
			Account:    os.Getenv("AZURE_STORAGE_ACCOUNT"),
			SASToken:   os.Getenv("AZURE_STORAGE_SAS_TOKEN"),
			Container:  getEnv("AZURE_STORAGE_CONTAINER", "plant-observations"),
			ServiceURL: os.Getenv("AZURE_STORAGE_SERVICE_URL"),
		},
		Cosmos: CosmosConfig{
			Endpoint:         firstEnv("COSMOS_ENDPOINT", "VITE_COSMOS_ENDPOINT"),
			Key:              firstEnv("COSMOS_KEY", "VITE_COSMOS_KEY"),
			ConnectionString: firstEnv("COSMOS_CONNECTION_STRING", "VITE_COSMOS_CONNECTION_STRING"),
			Database:         getEnv("COSMOS_DATABASE", "plants-db"),
			Container:        getEnv("COSMOS_CONTAINER", "plant-observations"),
		},
		Mongo: MongoConfig{
			URI:        os.Getenv("MONGO_URI"),
			Database:   getEnv("MONGO_DATABASE", "plants-db"),
			Collection: getEnv("MONGO_COLLECTION", "plant-observations"),
			Timeout:    mongoTimeout,
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("JWT_SECRET"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		Image: ImageConfig{
			MaxBytes: int64(maxBytes),
			MaxEdge:  maxEdge,
		},
		Sweep: SweepConfig{
			Schedule: getEnv("ORPHAN_SWEEP_SCHEDULE", "@every 1h"),
			Grace:    grace,
		},
		Log: LogConfig{
			Mode: getEnv("LOG_MODE", "development"),
			File: os.Getenv("LOG_FILE"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects a backend selection whose credentials are missing, so a
// misconfigured deployment fails at startup rather than on the first upload.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendLocal:
		if c.LocalDir == "" {
			return errors.New("LOCAL_DIR must be set for the local backend")
		}
	case BackendAzureBlob:
		if !c.Azure.Enabled() {
			return errors.New("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_SAS_TOKEN (or AZURE_STORAGE_SERVICE_URL) are required for the azure-blob backend")
		}
	case BackendCosmos:
		if c.Cosmos.ConnectionString == "" && (c.Cosmos.Endpoint == "" || c.Cosmos.Key == "") {
			return errors.New("COSMOS_CONNECTION_STRING or COSMOS_ENDPOINT and COSMOS_KEY are required for the cosmos backend")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return errors.New("MONGO_URI is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.Image.MaxBytes <= 0 || c.Image.MaxEdge <= 0 {
		return errors.New("MAX_IMAGE_BYTES and MAX_IMAGE_EDGE must be positive")
	}
	if c.Sweep.Enabled() && c.Sweep.Grace <= 0 {
		return errors.New("ORPHAN_GRACE must be positive while the orphan sweep is enabled")
	}
	if c.Auth.AdminPasswordHash != "" && c.Auth.JWTSecret == "" {
		return errors.New("ADMIN_PASSWORD_HASH is set but JWT_SECRET is empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// durationEnv accepts Go durations ("30s") and, like MONGO_TIMEOUT in older
// deployments, a bare number of seconds.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
