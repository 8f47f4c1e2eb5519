// Package sqldb stores transactions and the category hierarchy in a SQL
// database through gorm. SQLite, PostgreSQL and MySQL are supported.
package sqldb

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Open connects to the database named by driver and dsn and migrates the schema.
func Open(driver, dsn string, log zerolog.Logger) (*Store, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if strings.EqualFold(driver, DriverSQLite) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		// one connection keeps :memory: databases shared and writes serialized
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate creates or updates the transactions and category_hierarchy tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&transactionModel{}, &categoryEdgeModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("Open: empty dsn for driver %q", driver)
	}
	switch strings.ToLower(driver) {
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("Open: unsupported driver %q", driver)
	}
}
