package db

import (
	"embed"
	"fmt"

	"github.com/airobot/server/internal/model"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed seeds/*.sql
var seedFS embed.FS

// Migrate creates or updates the schema from the model declarations and then
// applies the versioned seed data.
func Migrate(gdb *gorm.DB, logger *zap.Logger) error {
	if err := gdb.SetupJoinTable(&model.Role{}, "Permissions", &model.RolePermission{}); err != nil {
		return fmt.Errorf("failed to set up role_permissions: %w", err)
	}
	if err := gdb.SetupJoinTable(&model.DeviceGroup{}, "Devices", &model.DeviceGroupRelation{}); err != nil {
		return fmt.Errorf("failed to set up device_group_relations: %w", err)
	}
	if err := gdb.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return runSeeds(gdb, logger)
}

func runSeeds(gdb *gorm.DB, logger *zap.Logger) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	dialect := "sqlite3"
	if gdb.Dialector.Name() == "postgres" {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetLogger(gooseLogger{logger.Named("goose").Sugar()})
	goose.SetBaseFS(seedFS)
	defer goose.SetBaseFS(nil)

	if err := goose.Up(sqlDB, "seeds"); err != nil {
		return fmt.Errorf("failed to apply seeds: %w", err)
	}
	return nil
}

// gooseLogger adapts zap to goose.Logger. Fatalf logs at error level and
// leaves the decision to exit to the caller.
type gooseLogger struct{ s *zap.SugaredLogger }

func (g gooseLogger) Fatalf(format string, v ...interface{}) { g.s.Errorf(format, v...) }
func (g gooseLogger) Printf(format string, v ...interface{}) { g.s.Infof(format, v...) }
