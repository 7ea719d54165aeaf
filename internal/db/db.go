package db

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/models"
)

// Connect opens the database. A DSN containing "@tcp(" is treated as mysql,
// anything else as a sqlite file path (the development default).
func Connect(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.Contains(dsn, "@tcp(") {
		dialector = mysql.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	return gorm.Open(dialector, &gorm.Config{})
}

// Migrate creates or updates the five tables.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.CallSession{},
		&models.ChatMessage{},
		&models.AuditLog{},
	)
}

// Ping verifies connectivity for health checks.
func Ping(gdb *gorm.DB) bool {
	sqlDB, err := gdb.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}
