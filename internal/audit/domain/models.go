package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/pkg/relation"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Entry is one immutable row of the history log. Changes is only set for updates.
type Entry struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"not null;index" json:"org_id"`
	EntityKind relation.Kind     `gorm:"not null" json:"entity_type"`
	EntityID   snowflake.ID      `gorm:"not null" json:"entity_id"`
	EntityName string            `json:"entity_name"`
	Action     Action            `gorm:"not null" json:"action"`
	Changes    datatypes.JSONMap `gorm:"type:jsonb" json:"changes,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (Entry) TableName() string { return "audit_entries" }

// Snapshot is the flat field view of an entity at one instant.
type Snapshot map[string]any

// Change is the before and after value of one field.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

type Changes map[string]Change

func (c Changes) JSONMap() datatypes.JSONMap {
	if len(c) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(c))
	for field, change := range c {
		out[field] = map[string]any{"old": change.Old, "new": change.New}
	}
	return out
}

// Record describes a mutation to log. Before is nil for create, After is nil for delete.
type Record struct {
	OrgID   snowflake.ID
	Subject relation.Ref
	Name    string
	Action  Action
	Before  Snapshot
	After   Snapshot
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID      snowflake.ID
	EntityKind relation.Kind
	EntityID   snowflake.ID
	Action     Action
	Cursor     *Cursor
	Limit      int
}
