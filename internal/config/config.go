package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8000"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"production"`
	Version     string `envconfig:"VERSION" default:"dev"`

	// MasterDatabase is a SQLite file path, or a postgres:// URL.
	MasterDatabase string `envconfig:"MASTER_DATABASE" default:"./master.db"`
	DataDir        string `envconfig:"DATA_DIR" default:"./data"`
	BackupDir      string `envconfig:"BACKUP_DIR" default:"./backups"`

	// JWTSecret signs session tokens. When empty a random secret is generated
	// at startup and every token is invalidated by a restart.
	JWTSecret  string        `envconfig:"JWT_SECRET"`
	TokenTTL   time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"12"`

	EnableSelfRegistration bool     `envconfig:"ENABLE_SELF_REGISTRATION" default:"false"`
	AppURL                 string   `envconfig:"APP_URL" default:"http://localhost:3000"`
	CORSAllowedOrigins     []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	LoginRatePerSecond     float64  `envconfig:"LOGIN_RATE_PER_SECOND" default:"1"`
	LoginRateBurst         int      `envconfig:"LOGIN_RATE_BURST" default:"10"`
	PlansFile              string   `envconfig:"PLANS_FILE"`
	TrustProxy             bool     `envconfig:"TRUST_PROXY" default:"false"`

	SuperAdminUsername string `envconfig:"SUPERADMIN_USERNAME" default:"superadmin"`
	SuperAdminPassword string `envconfig:"SUPERADMIN_PASSWORD"`

	StorageReconcileInterval time.Duration `envconfig:"STORAGE_RECONCILE_INTERVAL" default:"10m"`

	SystemBackupDir           string `envconfig:"SYSTEM_BACKUP_DIR" default:"./system_backups"`
	SystemBackupSchedule      string `envconfig:"SYSTEM_BACKUP_SCHEDULE"`
	SystemBackupRetentionDays int    `envconfig:"SYSTEM_BACKUP_RETENTION_DAYS" default:"30"`

	S3 S3Config `envconfig:"BACKUP_S3"`

	DiskCheckPaths     []string `envconfig:"DISK_CHECK_PATHS" default:"/"`
	DiskWarningPercent float64  `envconfig:"DISK_WARNING_PERCENT" default:"10"`
	HealthCheckURL     string   `envconfig:"HEALTH_CHECK_URL" default:"http://localhost:8000/health"`

	SMTP SMTPConfig `envconfig:"SMTP"`
}

// S3Config configures the optional off-site copy of system backups.
type S3Config struct {
	Bucket    string `envconfig:"BUCKET"`
	Prefix    string `envconfig:"PREFIX" default:"ecm"`
	Region    string `envconfig:"REGION" default:"us-east-1"`
	Endpoint  string `envconfig:"ENDPOINT"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
}

// Enabled reports whether uploads are configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// SMTPConfig configures alert emails. Alerts are logged only when Host is empty.
type SMTPConfig struct {
	Host     string   `envconfig:"HOST"`
	Port     int      `envconfig:"PORT" default:"587"`
	Username string   `envconfig:"USERNAME"`
	Password string   `envconfig:"PASSWORD"`
	From     string   `envconfig:"FROM"`
	To       []string `envconfig:"TO"`
}

// UsesPostgres reports whether the master registry lives in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.MasterDatabase, "postgres://") || strings.HasPrefix(c.MasterDatabase, "postgresql://")
}

// Load reads configuration from environment variables into a Config struct.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.StorageReconcileInterval <= 0 {
		return fmt.Errorf("STORAGE_RECONCILE_INTERVAL must be positive, got %s", c.StorageReconcileInterval)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.BackupDir == "" {
		return fmt.Errorf("BACKUP_DIR is required")
	}
	return nil
}
