// Package tests holds shared database helpers for package tests and the
// end-to-end API tests.
package tests

import (
	"context"
	"strings"
	"testing"

	"github.com/airobot/server/internal/db"
	"github.com/airobot/server/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenDB returns a migrated and seeded in-memory database private to t.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&cache=shared"

	logger := zap.NewNop()
	gdb, err := db.Open(context.Background(), db.Options{Driver: "sqlite", Path: dsn}, logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// SeedUser inserts an active user with the default role.
func SeedUser(t testing.TB, gdb *gorm.DB, name string) model.User {
	t.Helper()
	u := model.User{Username: name, Email: name + "@example.com", PasswordHash: "x", RoleID: 2, Status: model.UserStatusActive}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedDevice inserts an offline device owned by userID.
func SeedDevice(t testing.TB, gdb *gorm.DB, userID uint, name string) model.Device {
	t.Helper()
	d := model.Device{UserID: userID, Name: name, Type: "dog", Status: model.DeviceOffline}
	if err := gdb.Create(&d).Error; err != nil {
		t.Fatalf("seed device: %v", err)
	}
	return d
}
