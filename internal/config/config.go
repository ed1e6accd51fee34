// Package config loads server and CLI settings from SIGNOUT_* environment
// variables and an optional .env file.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"signout/internal/blob"
	"signout/internal/core"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "SIGNOUT"

// DefaultEnvFile is read when present.
const DefaultEnvFile = ".env"

type Config struct {
	Env      string `mapstructure:"ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	PostgresDSN   string `mapstructure:"POSTGRES_DSN"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	BlobDriver            string `mapstructure:"BLOB_DRIVER"`
	BlobFSRoot            string `mapstructure:"BLOB_FS_ROOT"`
	BlobRecordPrefix      string `mapstructure:"BLOB_RECORD_PREFIX"`
	BlobS3Bucket          string `mapstructure:"BLOB_S3_BUCKET"`
	BlobS3Region          string `mapstructure:"BLOB_S3_REGION"`
	BlobS3Endpoint        string `mapstructure:"BLOB_S3_ENDPOINT"`
	BlobS3PathStyle       bool   `mapstructure:"BLOB_S3_PATH_STYLE"`
	BlobS3AccessKeyID     string `mapstructure:"BLOB_S3_ACCESS_KEY_ID"`
	BlobS3SecretAccessKey string `mapstructure:"BLOB_S3_SECRET_ACCESS_KEY"`

	RecordKey      string `mapstructure:"RECORD_KEY"`
	RecoverCorrupt bool   `mapstructure:"RECOVER_CORRUPT"`

	ArchivePrefix    string        `mapstructure:"ARCHIVE_PREFIX"`
	ArchiveURLExpiry time.Duration `mapstructure:"ARCHIVE_URL_EXPIRY"`

	MetricsBackend string `mapstructure:"METRICS_BACKEND"`
	TraceFile      string `mapstructure:"TRACE_FILE"`

	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"ENV":                       "production",
	"PORT":                      "8080",
	"LOG_LEVEL":                 "info",
	"STORAGE_DRIVER":            string(core.StorageSQLite),
	"SQLITE_PATH":               "signout.db",
	"POSTGRES_DSN":              "postgres://localhost/signout?sslmode=disable",
	"REDIS_ADDR":                "localhost:6379",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"REDIS_PREFIX":              "signout:",
	"MONGO_URI":                 "",
	"MONGO_DATABASE":            "signout",
	"BLOB_DRIVER":               string(blob.DriverFilesystem),
	"BLOB_FS_ROOT":              "./blobdata",
	"BLOB_RECORD_PREFIX":        "records/",
	"BLOB_S3_BUCKET":            "",
	"BLOB_S3_REGION":            "eu-west-2",
	"BLOB_S3_ENDPOINT":          "",
	"BLOB_S3_PATH_STYLE":        false,
	"BLOB_S3_ACCESS_KEY_ID":     "",
	"BLOB_S3_SECRET_ACCESS_KEY": "",
	"RECORD_KEY":                "signOutRecord",
	"RECOVER_CORRUPT":           false,
	"ARCHIVE_PREFIX":            core.DefaultArchivePrefix,
	"ARCHIVE_URL_EXPIRY":        "15m",
	"METRICS_BACKEND":           "prometheus",
	"TRACE_FILE":                "",
	"RATE_LIMIT_RPS":            20,
	"CORS_ORIGINS":              "http://localhost:3000",
	"SHUTDOWN_TIMEOUT":          "10s",
}

// Load reads configuration. Precedence: SIGNOUT_* environment variables, then
// SIGNOUT_* entries of envFile (DefaultEnvFile when empty; a missing file is
// ignored), then defaults.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if err := mergeEnvFile(v, envFile); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeEnvFile lifts SIGNOUT_* entries of a dotenv file over the defaults so
// real environment variables still win.
func mergeEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	fileV := viper.New()
	fileV.SetConfigFile(path)
	fileV.SetConfigType("env")
	if err := fileV.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	prefix := strings.ToLower(EnvPrefix) + "_"
	for _, k := range fileV.AllKeys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		v.SetDefault(strings.ToUpper(strings.TrimPrefix(k, prefix)), fileV.Get(k))
	}
	return nil
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

// IsDev reports whether ENV is development.
func (c *Config) IsDev() bool { return c.Env == "development" }

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	switch core.StorageDriver(strings.ToLower(c.StorageDriver)) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageRedis, core.StorageBlob:
	case core.StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%s_MONGO_URI is required when %s_STORAGE_DRIVER is mongo", EnvPrefix, EnvPrefix)
		}
	default:
		return fmt.Errorf("%s_STORAGE_DRIVER must be one of memory, sqlite, postgres, redis, mongo, blob; got %q", EnvPrefix, c.StorageDriver)
	}
	switch blob.Driver(strings.ToLower(c.BlobDriver)) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.BlobS3Bucket == "" {
			return fmt.Errorf("%s_BLOB_S3_BUCKET is required when %s_BLOB_DRIVER is s3", EnvPrefix, EnvPrefix)
		}
	default:
		return fmt.Errorf("%s_BLOB_DRIVER must be one of fs, s3, memory; got %q", EnvPrefix, c.BlobDriver)
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%s_PORT must be a TCP port, got %q", EnvPrefix, c.Port)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("%s_LOG_LEVEL: %w", EnvPrefix, err)
	}
	switch c.MetricsBackend {
	case "prometheus", "expvar", "none":
	default:
		return fmt.Errorf("%s_METRICS_BACKEND must be prometheus, expvar or none; got %q", EnvPrefix, c.MetricsBackend)
	}
	if c.RecordKey == "" {
		return fmt.Errorf("%s_RECORD_KEY must not be empty", EnvPrefix)
	}
	return nil
}

// Storage returns the key/value backend settings.
func (c *Config) Storage() core.StorageConfig {
	return core.StorageConfig{
		Driver:        core.StorageDriver(c.StorageDriver),
		SQLitePath:    c.SQLitePath,
		PostgresDSN:   c.PostgresDSN,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
		Blob:          c.Blob(),
		BlobPrefix:    c.BlobRecordPrefix,
	}
}

// Blob returns the blob store settings used for archives and the blob driver.
func (c *Config) Blob() blob.Config {
	return blob.Config{
		Driver: c.BlobDriver,
		FSRoot: c.BlobFSRoot,
		S3: blob.S3Config{
			Region:          c.BlobS3Region,
			Bucket:          c.BlobS3Bucket,
			Endpoint:        c.BlobS3Endpoint,
			AccessKeyID:     c.BlobS3AccessKeyID,
			SecretAccessKey: c.BlobS3SecretAccessKey,
			PathStyle:       c.BlobS3PathStyle,
		},
	}
}

// RecordStoreOptions returns the record store settings.
func (c *Config) RecordStoreOptions(log zerolog.Logger) []core.RecordStoreOption {
	return []core.RecordStoreOption{
		core.WithRecordKey(c.RecordKey),
		core.WithRecoverCorrupt(c.RecoverCorrupt),
		core.WithStoreLogger(log),
	}
}

// Logger builds the process logger: JSON by default, a console writer in
// development.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.IsDev() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "signout").Logger()
}
