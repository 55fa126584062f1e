package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage backends
const (
	StorageMongoDB    = "mongodb"
	StorageDynamoDB   = "dynamodb"
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
)

// Config holds all configuration for the npaste service
type Config struct {
	Port        int      `json:"port"`
	URL         string   `json:"url"`
	CORSOrigins []string `json:"cors_origins"`

	StorageType       string `json:"storage_type"`
	MongoDBURI        string `json:"-"`
	MongoDBDatabase   string `json:"mongodb_database"`
	MongoDBCollection string `json:"mongodb_collection"`
	DynamoDBTable     string `json:"dynamodb_table"`
	DynamoDBRegion    string `json:"dynamodb_region"`
	DynamoDBEndpoint  string `json:"dynamodb_endpoint"`
	DataDir           string `json:"data_dir"`

	StoreTimeout    time.Duration `json:"store_timeout"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	IDLength        int           `json:"id_length"`
	MaxContentSize  int64         `json:"max_content_size"`

	AdminKeys []string `json:"-"`
	AdminOpen bool     `json:"admin_open"`

	AMQPURI       string `json:"-"`
	TestMode      bool   `json:"test_mode"`
	LogLevel      string `json:"log_level"`
	EnableMetrics bool   `json:"enable_metrics"`

	Version    string `json:"version"`
	BuildTime  string `json:"build_time"`
	CommitHash string `json:"commit_hash"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Port:              8080,
		URL:               "http://localhost:3000",
		StorageType:       StorageMongoDB,
		MongoDBURI:        "mongodb://localhost:27017",
		MongoDBDatabase:   "npaste",
		MongoDBCollection: "pastes",
		DynamoDBTable:     "npaste-pastes",
		DataDir:           "./data",
		StoreTimeout:      10 * time.Second,
		CleanupInterval:   time.Minute,
		IDLength:          8,
		MaxContentSize:    1 << 20, // 1MB
		LogLevel:          "info",
		EnableMetrics:     true,
	}
}

// LoadConfig loads an optional .env file, then CLI flags from args, then
// environment variables. Environment wins over flags.
func LoadConfig(args []string) (*Config, error) {
	envFile := os.Getenv("NPASTE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	config := Default()
	var corsOrigins, adminKeys string

	fs := flag.NewFlagSet("npaste", flag.ContinueOnError)
	fs.IntVar(&config.Port, "port", config.Port, "Port to listen on")
	fs.StringVar(&config.URL, "url", config.URL, "Base URL for share links")
	fs.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (default: url)")
	fs.StringVar(&config.StorageType, "storage-type", config.StorageType, "Storage backend: mongodb, dynamodb, filesystem, memory")
	fs.StringVar(&config.MongoDBURI, "mongodb-uri", config.MongoDBURI, "MongoDB connection string")
	fs.StringVar(&config.MongoDBDatabase, "mongodb-database", config.MongoDBDatabase, "MongoDB database name")
	fs.StringVar(&config.MongoDBCollection, "mongodb-collection", config.MongoDBCollection, "MongoDB collection name")
	fs.StringVar(&config.DynamoDBTable, "dynamodb-table", config.DynamoDBTable, "DynamoDB table name")
	fs.StringVar(&config.DynamoDBRegion, "dynamodb-region", config.DynamoDBRegion, "DynamoDB region (default: AWS config)")
	fs.StringVar(&config.DynamoDBEndpoint, "dynamodb-endpoint", config.DynamoDBEndpoint, "DynamoDB endpoint override")
	fs.StringVar(&config.DataDir, "data-dir", config.DataDir, "Directory for the filesystem backend")
	fs.DurationVar(&config.StoreTimeout, "store-timeout", config.StoreTimeout, "Timeout for a single store call")
	fs.DurationVar(&config.CleanupInterval, "cleanup-interval", config.CleanupInterval, "Interval between expired paste sweeps (0 disables)")
	fs.IntVar(&config.IDLength, "id-length", config.IDLength, "Length of generated paste ids")
	fs.Int64Var(&config.MaxContentSize, "max-content-size", config.MaxContentSize, "Maximum request body size in bytes")
	fs.StringVar(&adminKeys, "admin-keys", "", "Comma-separated API keys for admin endpoints")
	fs.BoolVar(&config.AdminOpen, "admin-open", config.AdminOpen, "Serve admin endpoints without authentication when no keys are set")
	fs.StringVar(&config.AMQPURI, "amqp-uri", config.AMQPURI, "RabbitMQ URI for paste events (empty disables)")
	fs.BoolVar(&config.TestMode, "test-mode", config.TestMode, "Honour the x-test-now-ms header")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&config.EnableMetrics, "enable-metrics", config.EnableMetrics, "Expose /metrics")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	config.CORSOrigins = splitList(corsOrigins)
	config.AdminKeys = splitList(adminKeys)

	if err := applyEnv(config); err != nil {
		return nil, err
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{config.URL}
	}

	return config, config.Validate()
}

// lookup returns the first non-empty variable among names
func lookup(names ...string) (string, bool) {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val, true
		}
	}
	return "", false
}

func applyEnv(config *Config) error {
	var errs []error
	envInt := func(dst *int, names ...string) {
		if val, ok := lookup(names...); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", names[0], err))
				return
			}
			*dst = n
		}
	}
	envBool := func(dst *bool, names ...string) {
		if val, ok := lookup(names...); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", names[0], err))
				return
			}
			*dst = b
		}
	}
	envDuration := func(dst *time.Duration, names ...string) {
		if val, ok := lookup(names...); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", names[0], err))
				return
			}
			*dst = d
		}
	}
	envString := func(dst *string, names ...string) {
		if val, ok := lookup(names...); ok {
			*dst = val
		}
	}

	envInt(&config.Port, "NPASTE_PORT", "PORT")
	envString(&config.URL, "NPASTE_URL", "FRONTEND_URL")
	if val, ok := lookup("NPASTE_CORS_ORIGINS"); ok {
		config.CORSOrigins = splitList(val)
	}
	envString(&config.StorageType, "NPASTE_STORAGE_TYPE")
	envString(&config.MongoDBURI, "NPASTE_MONGODB_URI", "MONGO_URL")
	envString(&config.MongoDBDatabase, "NPASTE_MONGODB_DATABASE")
	envString(&config.MongoDBCollection, "NPASTE_MONGODB_COLLECTION")
	envString(&config.DynamoDBTable, "NPASTE_DYNAMODB_TABLE")
	envString(&config.DynamoDBRegion, "NPASTE_DYNAMODB_REGION", "AWS_REGION")
	envString(&config.DynamoDBEndpoint, "NPASTE_DYNAMODB_ENDPOINT")
	envString(&config.DataDir, "NPASTE_DATA_DIR")
	envDuration(&config.StoreTimeout, "NPASTE_STORE_TIMEOUT")
	envDuration(&config.CleanupInterval, "NPASTE_CLEANUP_INTERVAL")
	envInt(&config.IDLength, "NPASTE_ID_LENGTH")
	if val, ok := lookup("NPASTE_MAX_CONTENT_SIZE"); ok {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("NPASTE_MAX_CONTENT_SIZE: %w", err))
		} else {
			config.MaxContentSize = n
		}
	}
	if val, ok := lookup("NPASTE_ADMIN_KEYS"); ok {
		config.AdminKeys = splitList(val)
	}
	envBool(&config.AdminOpen, "NPASTE_ADMIN_OPEN")
	envString(&config.AMQPURI, "NPASTE_AMQP_URI")
	envBool(&config.TestMode, "NPASTE_TEST_MODE", "TEST_MODE")
	envString(&config.LogLevel, "NPASTE_LOG_LEVEL")
	envBool(&config.EnableMetrics, "NPASTE_ENABLE_METRICS")

	return errors.Join(errs...)
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	switch c.StorageType {
	case StorageMongoDB:
		if c.MongoDBURI == "" {
			errs = append(errs, errors.New("mongodb storage requires a connection string"))
		}
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			errs = append(errs, errors.New("dynamodb storage requires a table name"))
		}
	case StorageFilesystem:
		if c.DataDir == "" {
			errs = append(errs, errors.New("filesystem storage requires a data directory"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported storage type: %s (supported: mongodb, dynamodb, filesystem, memory)", c.StorageType))
	}
	if c.IDLength < 4 || c.IDLength > 32 {
		errs = append(errs, fmt.Errorf("id length must be between 4 and 32, got %d", c.IDLength))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("store timeout must be positive"))
	}
	if c.CleanupInterval < 0 {
		errs = append(errs, errors.New("cleanup interval must not be negative"))
	}
	if c.MaxContentSize <= 0 {
		errs = append(errs, errors.New("max content size must be positive"))
	}
	if c.AdminOpen && len(c.AdminKeys) > 0 {
		errs = append(errs, errors.New("admin-open cannot be combined with admin keys"))
	}
	return errors.Join(errs...)
}

// ShareURL builds the public link for a paste id
func (c *Config) ShareURL(id string) string {
	return strings.TrimRight(c.URL, "/") + "/p/" + id
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
