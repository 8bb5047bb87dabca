package models

import (
	"time"

	"github.com/google/uuid"
)

// DataSourceType identifies which database engine a data source connects to.
// The type is fixed at creation time and determines which config schema applies.
type DataSourceType string

const (
	TypePostgreSQL DataSourceType = "postgresql"
	TypeMySQL      DataSourceType = "mysql"
	TypeOracle     DataSourceType = "oracle"
)

// ValidDataSourceTypes contains all supported data source types.
var ValidDataSourceTypes = []DataSourceType{TypePostgreSQL, TypeMySQL, TypeOracle}

// IsValidDataSourceType checks if the given type is supported.
func IsValidDataSourceType(t DataSourceType) bool {
	for _, v := range ValidDataSourceTypes {
		if t == v {
			return true
		}
	}
	return false
}

// DataSourceStatus is the connection lifecycle status of a data source.
// Transitions are unconstrained; the value is informational.
type DataSourceStatus string

const (
	StatusActive   DataSourceStatus = "active"
	StatusInactive DataSourceStatus = "inactive"
	StatusError    DataSourceStatus = "error"
	StatusPending  DataSourceStatus = "pending"
)

// ValidDataSourceStatuses contains all valid status values.
var ValidDataSourceStatuses = []DataSourceStatus{StatusActive, StatusInactive, StatusError, StatusPending}

// IsValidDataSourceStatus checks if the given status is valid.
func IsValidDataSourceStatus(s DataSourceStatus) bool {
	for _, v := range ValidDataSourceStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// DataSource is a stored database connection definition.
// Title is globally unique (enforced by a unique index, with an in-process
// pre-check for early rejection). Config holds the type-specific connection
// parameters and must validate against the schema for Type.
type DataSource struct {
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Type      DataSourceType   `json:"type"`
	Status    DataSourceStatus `json:"status"`
	CreatedBy *uuid.UUID       `json:"created_by,omitempty"` // SET NULL when the creator account is deleted
	TeamID    *uuid.UUID       `json:"team_id,omitempty"`    // SET NULL when the team is deleted
	Config    map[string]any   `json:"config"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
