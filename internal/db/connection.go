package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultTarget keeps the swarm in a file next to the binary. WAL and a
// busy timeout let the pooled connections write concurrently.
const DefaultTarget = "file:rtracker.sqlite3?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open connects to target, caps the connection pool at poolSize and
// creates the schema if it is missing.
func Open(target string, poolSize int) (*gorm.DB, error) {
	if poolSize < 1 {
		return nil, fmt.Errorf("pool size must be positive, got %d", poolSize)
	}

	db, err := gorm.Open(sqlite.Open(target), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(poolSize)
	// In-memory shared-cache databases vanish with their last connection.
	sqlDB.SetMaxIdleConns(poolSize)
	sqlDB.SetConnMaxIdleTime(0)

	if err := db.AutoMigrate(&Peer{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Close releases every pooled connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
