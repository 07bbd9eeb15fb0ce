// Package dbtest opens throwaway SQLite databases with the full schema for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/richardliu001/event-lifecycle/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns an in-memory database private to t. It is limited to a single
// connection so SQLite never reports table locks between goroutines.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// SeedUser inserts a user with the given contact details.
func SeedUser(t testing.TB, db *gorm.DB, id uint64, email, mobile string) model.User {
	t.Helper()
	u := model.User{ID: id, FirstName: "User", LastName: fmt.Sprint(id), Email: email, Mobile: mobile}
	require.NoError(t, db.Create(&u).Error)
	return u
}
