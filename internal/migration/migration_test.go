package migration

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStatementsAreSplit(t *testing.T) {
	stmts, err := Statements()
	require.NoError(t, err)
	require.NotEmpty(t, stmts)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS properties"))
	for _, stmt := range stmts {
		assert.NotContains(t, stmt, ";\n")
	}
}

func TestApplyIsIdempotentOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migration_apply?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, Apply(ctx, conn))
	require.NoError(t, Apply(ctx, conn))

	for _, table := range []string{"properties", "tenants", "leases", "vacancies", "payments", "notifications", "notification_settings", "audit_entries"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
