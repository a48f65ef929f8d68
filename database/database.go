// database.go - Handles database connection and setup

package database // Declares the package name

import ( // Import required packages
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql" // DSN normalization for MySQL
	"github.com/jackc/pgx/v5"        // Postgres DSN parsing
	"github.com/jackc/pgx/v5/stdlib" // database/sql adapter for pgx
	"github.com/sirupsen/logrus"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite" // SQLite driver for GORM
	"gorm.io/gorm"          // GORM ORM
	"gorm.io/gorm/logger"

	"go-home-dashboard/auth"   // Password hashing
	"go-home-dashboard/config" // Project config
	"go-home-dashboard/models" // Entities
)

// ErrNoRole is returned when the fixed role rows are missing.
var ErrNoRole = errors.New("role not found")

// Connect opens the configured database, runs migrations, seeds the
// fixed roles and, if configured, the bootstrap admin.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.Database)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == config.DriverSQLite {
		// One writer at a time; in-memory databases also live on a single connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpen)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdle)
		sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	}

	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := SeedRoles(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := createDefaultAdmin(db, cfg.Admin); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(c config.DatabaseConfig) (gorm.Dialector, error) {
	switch c.Driver {
	case config.DriverSQLite:
		dsn := c.DSN
		if dsn == "" {
			dsn = c.Path
		}
		return sqlite.Open(withForeignKeys(dsn)), nil
	case config.DriverPostgres:
		pgCfg, err := pgx.ParseConfig(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("db: failed to parse DSN: %w", err)
		}
		pgCfg.ConnectTimeout = 5 * time.Second // Fail fast on startup if PG is unreachable
		return postgres.New(postgres.Config{Conn: stdlib.OpenDB(*pgCfg)}), nil
	case config.DriverMySQL:
		myCfg, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("db: failed to parse DSN: %w", err)
		}
		myCfg.ParseTime = true // gorm scans DATETIME into time.Time
		if myCfg.Loc == nil {
			myCfg.Loc = time.UTC
		}
		return mysqldriver.Open(myCfg.FormatDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

// withForeignKeys turns on FK enforcement, which sqlite leaves off by default.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// Migrate creates or updates every table (create table if needed).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Device{},
		&models.DeviceActivation{},
		&models.Log{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedRoles makes sure every fixed role row exists.
func SeedRoles(db *gorm.DB) error {
	for _, name := range models.RoleNames {
		role := models.Role{Name: name}
		if err := db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

// RoleByName loads one of the fixed roles.
func RoleByName(db *gorm.DB, name models.RoleName) (*models.Role, error) {
	var role models.Role
	err := db.Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoRole, name)
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// createDefaultAdmin - Creates a default admin user if configured and none exists
// This uses environment variables for security instead of hardcoded credentials
func createDefaultAdmin(db *gorm.DB, cfg config.AdminConfig) error {
	// Only create admin if explicitly configured
	if !cfg.Create {
		return nil
	}

	adminRole, err := RoleByName(db, models.RoleAdmin)
	if err != nil {
		return err
	}

	// Check if any admin user exists
	var count int64
	if err := db.Model(&models.User{}).Where("role_id = ?", adminRole.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	// Create default admin user using config values
	hash, salt, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	adminUser := models.User{
		Username:     cfg.Username,
		Email:        cfg.Email,
		Name:         "Administrator",
		PasswordHash: hash,
		Salt:         salt,
		RoleID:       adminRole.ID,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}
	logrus.WithField("username", adminUser.Username).Info("default admin user created")
	return nil
}
