package database

import (
	"unicarbon-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer, Supabase, Render).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// OpenSQLite opens a file (or ":memory:") SQLite ledger for local runs.
// SQLite allows a single writer, so the pool is pinned to one connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Models lists every ledger entity owned by the store.
func Models() []interface{} {
	return []interface{}{
		&domain.Property{},
		&domain.Owner{},
		&domain.Payment{},
		&domain.OffsetRecord{},
		&domain.Company{},
		&domain.CreditRecord{},
		&domain.NftProof{},
		&domain.ChainSubmission{},
	}
}

// AutoMigrate runs migrations for all ledger models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
