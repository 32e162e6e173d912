package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type activityRecord struct {
	bun.BaseModel `bun:"table:bca_request_activity,alias:bra"`

	ID          string    `bun:"id,pk"`
	RequestID   string    `bun:"request_id,notnull"`
	Method      string    `bun:"method,notnull"`
	Path        string    `bun:"path,notnull"`
	State       string    `bun:"state,notnull"`
	FailedStage string    `bun:"failed_stage"`
	StatusCode  int       `bun:"status_code,notnull"`
	ErrorCode   string    `bun:"error_code"`
	DurationMS  int64     `bun:"duration_ms,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
