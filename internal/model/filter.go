package model

import "time"

// ListFilter narrows an admin listing. Zero values mean "no constraint";
// Limit/Offset are applied after filtering, ordered by timestamp descending.
type ListFilter struct {
	Method     string
	PathPrefix string
	Since      *time.Time
	Until      *time.Time
	HasFiles   *bool
	Limit      int
	Offset     int
}
