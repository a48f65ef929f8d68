// config.go - Handles configuration for the dashboard backend

package config // Declares the package name

import ( // Import required packages
	"fmt"     // Error formatting
	"os"      // For reading environment variables
	"strconv" // Parsing numeric settings
	"strings" // Splitting list settings
	"time"    // Durations (token TTL, quota)
)

// Supported values for DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds all configuration values.
type Config struct {
	Port     string // HTTP listen port
	Database DatabaseConfig
	MQTT     MQTTConfig
	Auth     AuthConfig
	Admin    AdminConfig
	Log      LogConfig
	Redis    RedisConfig

	CORSOrigins      []string      // Origins allowed to call the API from a browser
	LoginRate        float64       // Login attempts per second (token bucket refill)
	LoginBurst       int           // Login burst size
	DeviceDailyQuota time.Duration // Max timed-activation runtime per device per 24h (0 = unlimited)
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Driver      string        // sqlite | postgres | mysql
	Path        string        // SQLite database file path
	DSN         string        // Connection string for postgres/mysql (overrides Path for sqlite when set)
	MaxOpen     int           // Pool size
	MaxIdle     int           // Idle connections kept
	MaxLifetime time.Duration // Connection recycling
}

// MQTTConfig contains broker settings.
type MQTTConfig struct {
	Broker      string // Address of the MQTT broker
	ClientID    string // Client id presented to the broker
	TopicPrefix string // Root of all device topics, e.g. "home"
}

// AuthConfig contains token settings.
type AuthConfig struct {
	JWTSecret string        // Secret key for JWT authentication
	TokenTTL  time.Duration // Lifetime of issued tokens
}

// AdminConfig controls the optional bootstrap admin account.
type AdminConfig struct {
	Create   bool
	Username string
	Email    string
	Password string
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

// RedisConfig is used for the token denylist when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
}

func Load() *Config { // Load reads config from environment variables or uses defaults
	return &Config{
		Port: getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)), // sqlite unless told otherwise
			Path:        getEnv("DB_PATH", "data.db"),                       // Get DB path or use default
			DSN:         getEnv("DB_DSN", ""),
			MaxOpen:     getEnvInt("DB_MAX_OPEN", 25),
			MaxIdle:     getEnvInt("DB_MAX_IDLE", 25),
			MaxLifetime: getEnvDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		MQTT: MQTTConfig{
			Broker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"), // Get MQTT broker or use default
			ClientID:    getEnv("MQTT_CLIENT_ID", "home-dashboard"),
			TopicPrefix: strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "home"), "/"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "supersecret"), // Get JWT secret or use default
			TokenTTL:  getEnvDuration("TOKEN_TTL", 72*time.Hour),
		},
		Admin: AdminConfig{
			Create:   getEnv("CREATE_ADMIN", "false") == "true",
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Email:    getEnv("ADMIN_EMAIL", "admin@localhost"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:4200")), // Angular dev server
		LoginRate:        getEnvFloat("LOGIN_RATE", 1),
		LoginBurst:       getEnvInt("LOGIN_BURST", 5),
		DeviceDailyQuota: getEnvDuration("DEVICE_DAILY_QUOTA", time.Hour),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" && c.Database.DSN == "" {
			return fmt.Errorf("DB_PATH or DB_DSN is required for sqlite")
		}
	case DriverPostgres, DriverMySQL:
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Admin.Create && c.Admin.Password == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required when CREATE_ADMIN=true")
	}
	if c.DeviceDailyQuota < 0 {
		return fmt.Errorf("DEVICE_DAILY_QUOTA must not be negative")
	}
	return nil
}

// String returns a representation safe for logs (secrets masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %s, DB: %s, MQTT: %s, Redis: %t, Auth: *** (masked) ***}",
		c.Port, c.Database.Driver, c.MQTT.Broker, c.Redis.Addr != "")
}

func getEnv(key, fallback string) string { // Helper to get env var or fallback
	if value := os.Getenv(key); value != "" { // If env var is set, use it
		return value
	}
	return fallback // Otherwise, use fallback value
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

// getEnvDuration accepts Go durations ("90m", "72h") or bare seconds ("3600").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
