package cliutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupDatabase opens a gorm handle from a database URL. Two schemes are
// recognized: `sqlite://<path>` (single writer connection, WAL) and a full
// `postgres://` / `postgresql://` URL handed straight to the driver.
func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	sqlitePath, isSqlite := strings.CutPrefix(dburl, "sqlite://")
	switch {
	case isSqlite:
		// file-backed databases need their parent directory; in-memory
		// variants are left alone
		if !strings.Contains(sqlitePath, ":?") {
			os.MkdirAll(filepath.Dir(sqlitePath), os.ModePerm)
		}
		dial = sqlite.Open(sqlitePath)
		maxConnections = 1
	case strings.HasPrefix(dburl, "postgresql://"), strings.HasPrefix(dburl, "postgres://"):
		dial = postgres.Open(dburl)
	default:
		return nil, fmt.Errorf("unsupported or unrecognized DATABASE_URL value: %s", dburl)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxIdleConns(80)
	sqldb.SetMaxOpenConns(maxConnections)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}
