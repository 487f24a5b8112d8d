// Package testutil opens in-memory stores for package tests.
package testutil

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rentflow/internal/migration"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// NewDB opens a private in-memory sqlite database with the schema applied.
// Row locks are stripped from statements since sqlite serializes writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := unsafeName.ReplaceAllString(t.Name(), "_")
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stripLocks := func(db *gorm.DB) {
		if db.Statement == nil || db.Statement.SQL.Len() == 0 {
			return
		}
		sql := db.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			db.Statement.SQL.Reset()
			db.Statement.SQL.WriteString(strings.ReplaceAll(sql, " FOR UPDATE", ""))
		}
	}
	if err := conn.Callback().Query().Before("gorm:query").Register("testutil:strip_for_update", stripLocks); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	if err := conn.Callback().Row().Before("gorm:row").Register("testutil:strip_for_update_row", stripLocks); err != nil {
		t.Fatalf("register row callback: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.Apply(context.Background(), conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}
