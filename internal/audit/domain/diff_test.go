package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestDiffReportsOnlyChangedSharedScalars(t *testing.T) {
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	before := Snapshot{
		"is_active":   true,
		"end_date":    nil,
		"rent_amount": int64(90000),
		"payment_day": 5,
		"notes":       "",
		"only_before": "x",
		"tags":        []string{"a"},
	}
	after := Snapshot{
		"is_active":   false,
		"end_date":    &end,
		"rent_amount": 90000.0,
		"payment_day": int32(5),
		"notes":       "",
		"only_after":  "y",
		"tags":        []string{"b"},
	}

	changes := Diff(before, after)

	assert.Len(t, changes, 2)
	assert.Equal(t, Change{Old: true, New: false}, changes["is_active"])
	assert.Equal(t, Change{Old: nil, New: end}, changes["end_date"])
}

func TestDiffComparesTimesAsInstants(t *testing.T) {
	utc := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	paris := utc.In(time.FixedZone("CET", 3600))
	assert.Empty(t, Diff(Snapshot{"at": utc}, Snapshot{"at": paris}))
}

func TestDiffNilPointersEqualNil(t *testing.T) {
	var none *time.Time
	var noID *snowflake.ID
	assert.Empty(t, Diff(Snapshot{"end_date": none, "tenant": noID}, Snapshot{"end_date": nil, "tenant": nil}))
}

func TestDiffStringersCompareByString(t *testing.T) {
	changes := Diff(Snapshot{"tenant_id": snowflake.ID(1)}, Snapshot{"tenant_id": snowflake.ID(2)})
	assert.Equal(t, Change{Old: "1", New: "2"}, changes["tenant_id"])
}

func TestChangesJSONMap(t *testing.T) {
	assert.Nil(t, Changes{}.JSONMap())
	m := Changes{"is_active": {Old: true, New: false}}.JSONMap()
	assert.Equal(t, map[string]any{"old": true, "new": false}, m["is_active"])
}
