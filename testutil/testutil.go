// Package testutil holds helpers shared by package tests: an in-memory
// database, seeded users and signed tokens.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"go-home-dashboard/auth"
	"go-home-dashboard/config"
	"go-home-dashboard/database"
	"go-home-dashboard/models"
)

// Secret signs every token minted by tests.
const Secret = "test-secret"

var dbSeq atomic.Int64

// Config returns a config pointing at a fresh in-memory sqlite database.
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	cfg.Auth.JWTSecret = Secret
	cfg.Auth.TokenTTL = time.Hour
	cfg.Admin.Create = false
	return cfg
}

// OpenDB opens and migrates an in-memory database closed at test cleanup.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	return OpenDBWith(t, Config(t))
}

// OpenDBWith is OpenDB for a caller-supplied config.
func OpenDBWith(t *testing.T, cfg *config.Config) *gorm.DB {
	t.Helper()
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateUser inserts a user with the given role and password "password".
func CreateUser(t *testing.T, db *gorm.DB, username string, role models.RoleName) *models.User {
	t.Helper()
	r, err := database.RoleByName(db, role)
	if err != nil {
		t.Fatalf("role %s: %v", role, err)
	}
	hash, salt, err := auth.HashPassword("password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{
		Username:     username,
		Email:        username + "@test.local",
		Name:         strings.ToUpper(username[:1]) + username[1:],
		PasswordHash: hash,
		Salt:         salt,
		RoleID:       r.ID,
		Role:         *r,
	}
	if err := db.Omit("Role").Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// Token returns a bearer token for the user signed with Secret.
func Token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, _, err := auth.GenerateToken(u.ID, Secret, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// CreateDevice inserts a device under home/<room>/<name>.
func CreateDevice(t *testing.T, db *gorm.DB, name, room string, typ models.DeviceType) *models.Device {
	t.Helper()
	d := &models.Device{Name: name, Room: room, Type: typ, Topic: "home/" + room + "/" + name}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("create device %s: %v", name, err)
	}
	return d
}
