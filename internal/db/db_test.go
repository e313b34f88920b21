package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/airobot/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestPing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, Ping(context.Background(), gdb))

	mock.ExpectPing().WillReturnError(errors.New("connection reset"))
	err = Ping(context.Background(), gdb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenAndMigrate_sqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "robot.db")
	logger := zap.NewNop()

	gdb, err := Open(context.Background(), Options{Driver: "sqlite", Path: path}, logger)
	require.NoError(t, err)
	defer Close(gdb)

	require.NoError(t, Migrate(gdb, logger))
	// seeds are versioned, so a second run is a no-op
	require.NoError(t, Migrate(gdb, logger))

	var actions []model.Action
	require.NoError(t, gdb.Order("id").Find(&actions).Error)
	require.Len(t, actions, 6)
	assert.Equal(t, "forward", actions[0].Name)
	assert.Equal(t, model.ActionBasic, actions[0].Type)
	assert.InDelta(t, 0.5, actions[2].Duration, 1e-9)
	labels, err := actions[0].StepLabels()
	require.NoError(t, err)
	assert.Equal(t, []string{"forward"}, labels)

	var admin model.Role
	require.NoError(t, gdb.Preload("Permissions").Where("name = ?", model.RoleAdmin).First(&admin).Error)
	assert.Len(t, admin.Permissions, 9)

	var user model.Role
	require.NoError(t, gdb.Preload("Permissions").Where("name = ?", model.RoleUser).First(&user).Error)
	assert.Len(t, user.Permissions, 6)
}

func TestOpen_unknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle"}, zap.NewNop())
	require.Error(t, err)
}
