package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/video-uploader/internal/errs"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

// Config holds all application configuration.
// Values come from environment variables, then a YAML account file, then defaults.
//
// Environment Variables:
// Database:
// - DB_DRIVER: sqlite, postgres or mysql (default: sqlite)
// - DB_PATH: SQLite database file (default: $DATA_DIR/catalog.db)
// - DB_DSN: full PostgreSQL or MySQL connection string, overrides the fields below
// - DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME
// - DB_PORT defaults to 5432 for postgres and 3306 for mysql
//
// Object store:
// - OSS_ENDPOINT, OSS_BUCKET, OSS_ACCESS_KEY_ID, OSS_ACCESS_KEY_SECRET (required)
// - OSS_SAVE_DIR: key prefix for uploaded objects (default: video)
// - OSS_CONNECT_TIMEOUT: seconds (default: 10)
// - OSS_RW_TIMEOUT: seconds (default: 120)
//
// Ledger:
// - LEDGER_FILE: history file (default: $DATA_DIR/uploaded_video.json)
// - LEDGER_RECORD_UPLOAD_FAILURES: also record failed uploads (default: true)
//
// System:
// - DATA_DIR: local state directory (default: ./data)
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - LOG_FILE: optional log file, written alongside stdout
// - HTTP_ADDR: listen address for serve (default: :8080)
// - RECONCILE_CRON: standard 5-field cron expression for scheduled retries (optional)
// - ACCOUNT_FILE: YAML file with DB_INFO and OSS_INFO nodes (optional)
// - ENV_FILE: dotenv file loaded before reading the environment (default: .env)
type Config struct {
	DB        DBConfig        `json:"db"`
	OSS       OSSConfig       `json:"oss"`
	Ledger    LedgerConfig    `json:"ledger"`
	System    SystemConfig    `json:"system"`
	HTTP      HTTPConfig      `json:"http"`
	Reconcile ReconcileConfig `json:"reconcile"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DBConfig holds the catalog database configuration
type DBConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	DSN      string `json:"-"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Name     string `json:"name"`
}

// OSSConfig holds the object store configuration
type OSSConfig struct {
	Endpoint         string        `json:"endpoint"`
	Bucket           string        `json:"bucket"`
	AccessKeyID      string        `json:"-"`
	AccessKeySecret  string        `json:"-"`
	SaveDir          string        `json:"save_dir"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	ReadWriteTimeout time.Duration `json:"rw_timeout"`
}

type LedgerConfig struct {
	File                 string `json:"file"`
	RecordUploadFailures bool   `json:"record_upload_failures"`
}

// SystemConfig holds the system configuration
type SystemConfig struct {
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`
	LogFile     string `json:"log_file"`
	AccountFile string `json:"account_file"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type ReconcileConfig struct {
	CronExpr string `json:"cron_expr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	loadEnvFile(getEnvString("ENV_FILE", ".env"))

	accountFile := getEnvString("ACCOUNT_FILE", "")
	account := Account{}
	if accountFile != "" {
		loaded, err := LoadAccountFile(accountFile)
		if err != nil {
			return nil, err
		}
		account = loaded
	}

	dataDir := getEnvString("DATA_DIR", "./data")
	driver := normalizeDriver(getEnvString("DB_DRIVER", defaultString(account.DB.Engine, DriverSQLite)))
	config := &Config{
		DB: DBConfig{
			Driver:   driver,
			Path:     getEnvString("DB_PATH", filepath.Join(dataDir, "catalog.db")),
			DSN:      getEnvString("DB_DSN", ""),
			Host:     getEnvString("DB_HOST", defaultString(account.DB.Host, "localhost")),
			Port:     getEnvInt("DB_PORT", defaultInt(account.DB.Port, defaultPort(driver))),
			User:     getEnvString("DB_USER", account.DB.User),
			Password: getEnvString("DB_PASSWORD", account.DB.Password),
			Name:     getEnvString("DB_NAME", account.DB.Name),
		},
		OSS: OSSConfig{
			Endpoint:         getEnvString("OSS_ENDPOINT", account.OSS.Endpoint),
			Bucket:           getEnvString("OSS_BUCKET", account.OSS.BucketName),
			AccessKeyID:      getEnvString("OSS_ACCESS_KEY_ID", account.OSS.AccessKeyID),
			AccessKeySecret:  getEnvString("OSS_ACCESS_KEY_SECRET", account.OSS.AccessKeySecret),
			SaveDir:          strings.Trim(getEnvString("OSS_SAVE_DIR", defaultString(account.OSS.SaveDir, "video")), "/"),
			ConnectTimeout:   time.Duration(getEnvInt("OSS_CONNECT_TIMEOUT", 10)) * time.Second,
			ReadWriteTimeout: time.Duration(getEnvInt("OSS_RW_TIMEOUT", 120)) * time.Second,
		},
		Ledger: LedgerConfig{
			File:                 getEnvString("LEDGER_FILE", filepath.Join(dataDir, "uploaded_video.json")),
			RecordUploadFailures: getEnvBool("LEDGER_RECORD_UPLOAD_FAILURES", true),
		},
		System: SystemConfig{
			DataDir:     dataDir,
			LogLevel:    getEnvString("LOG_LEVEL", "info"),
			LogFile:     getEnvString("LOG_FILE", ""),
			AccountFile: accountFile,
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Reconcile: ReconcileConfig{
			CronExpr: getEnvString("RECONCILE_CRON", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: driver=%s bucket=%s endpoint=%s save_dir=%s ledger=%s",
		config.DB.Driver, config.OSS.Bucket, config.OSS.Endpoint, config.OSS.SaveDir, config.Ledger.File)

	return config, nil
}

// DatabaseDSN returns the data source name for the configured driver.
func (c *Config) DatabaseDSN() string {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DSN != "" {
			return c.DB.DSN
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.DB.User, c.DB.Password),
			Host:     net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
			Path:     "/" + c.DB.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	case DriverMySQL:
		if c.DB.DSN != "" {
			return c.DB.DSN
		}
		mc := mysql.NewConfig()
		mc.User = c.DB.User
		mc.Passwd = c.DB.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port))
		mc.DBName = c.DB.Name
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	default:
		return "file:" + c.DB.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	required := []struct{ key, value string }{
		{"OSS_ENDPOINT", c.OSS.Endpoint},
		{"OSS_BUCKET", c.OSS.Bucket},
		{"OSS_ACCESS_KEY_ID", c.OSS.AccessKeyID},
		{"OSS_ACCESS_KEY_SECRET", c.OSS.AccessKeySecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errs.Newf(errs.KindConfig, "%s is required", r.key)
		}
	}

	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return errs.New(errs.KindConfig, "DB_PATH is required for sqlite")
		}
	case DriverPostgres, DriverMySQL:
		if c.DB.DSN == "" && c.DB.Name == "" {
			return errs.Newf(errs.KindConfig, "DB_DSN or DB_NAME is required for %s", c.DB.Driver)
		}
	default:
		return errs.Newf(errs.KindConfig, "unsupported DB_DRIVER %q, use sqlite, postgres or mysql", c.DB.Driver)
	}

	if c.Ledger.File == "" {
		return errs.New(errs.KindConfig, "LEDGER_FILE is required")
	}
	if c.Reconcile.CronExpr != "" {
		if _, err := cron.ParseStandard(c.Reconcile.CronExpr); err != nil {
			return errs.Wrap(err, errs.KindConfig, "invalid RECONCILE_CRON")
		}
	}
	return nil
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch {
	case d == "sqlite", d == "sqlite3":
		return DriverSQLite
	case d == "postgres", strings.HasPrefix(d, "postgresql"):
		return DriverPostgres
	case d == "mysql", strings.HasPrefix(d, "mysql+"):
		// SQLAlchemy style engines such as mysql+pymysql
		return DriverMySQL
	}
	return d
}

func defaultPort(driver string) int {
	if driver == DriverMySQL {
		return 3306
	}
	return 5432
}

func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to load env file %s: %v", path, err)
	}
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func defaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
