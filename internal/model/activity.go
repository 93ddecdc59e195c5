package model

import (
	"encoding/json"
	"time"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	// ClearAllConfirmation must be supplied verbatim to wipe the whole activity log.
	ClearAllConfirmation = "YES_DELETE_ALL_LOGS"
)

type ActivityRecord struct {
	ID        int64           `json:"id"`
	UserID    *string         `json:"userId"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ActivityQuery struct {
	Action   string
	Status   string
	UserID   string
	Page     int
	PageSize int
}

type ActivityDeleteFilter struct {
	OlderThan *time.Time
	Action    string
	Status    string
}

func (f ActivityDeleteFilter) IsEmpty() bool {
	return f.OlderThan == nil && f.Action == "" && f.Status == ""
}
