package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bca/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultActivityPerPage = 25

// RetentionPolicy bounds the ledger by age and by row count. Zero values
// disable the matching rule.
type RetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}

// ActivityStore is the request ledger. It only stores request metadata:
// never tokens, signatures, bodies or credentials.
type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityRecord]
	now  func() time.Time
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *ActivityStore) Record(ctx context.Context, entry core.ActivityEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	requestID := strings.TrimSpace(entry.ID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	id := requestID
	if parseUUID(id) == uuid.Nil {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if entry.CreatedAt.IsZero() {
		createdAt = s.now()
	}
	state := strings.TrimSpace(string(entry.State))
	if state == "" {
		state = string(core.StateCompleted)
	}

	record := &activityRecord{
		ID:          id,
		RequestID:   requestID,
		Method:      strings.ToUpper(strings.TrimSpace(entry.Method)),
		Path:        strings.TrimSpace(entry.Path),
		State:       state,
		FailedStage: strings.TrimSpace(entry.FailedStage),
		StatusCode:  entry.StatusCode,
		ErrorCode:   strings.TrimSpace(entry.ErrorCode),
		DurationMS:  entry.DurationMS,
		CreatedAt:   createdAt,
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

// List returns entries newest first.
func (s *ActivityStore) List(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	if s == nil || s.repo == nil {
		return core.ActivityPage{}, fmt.Errorf("sqlstore: activity store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultActivityPerPage
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if method := strings.ToUpper(strings.TrimSpace(filter.Method)); method != "" {
		selectors = append(selectors, repository.SelectBy("method", "=", method))
	}
	if state := strings.TrimSpace(string(filter.State)); state != "" {
		selectors = append(selectors, repository.SelectBy("state", "=", state))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.ActivityPage{}, err
	}
	items := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		items = append(items, activityRecordToDomain(record))
	}
	return core.ActivityPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

func (s *ActivityStore) Prune(ctx context.Context, policy RetentionPolicy) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: activity store is not configured")
	}
	deleted := 0

	if policy.TTL > 0 {
		cutoff := s.now().Add(-policy.TTL)
		res, err := s.db.NewDelete().
			Model((*activityRecord)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if policy.RowCap > 0 {
		total, err := s.db.NewSelect().Model((*activityRecord)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		excess := total - policy.RowCap
		if excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM bca_request_activity WHERE id IN (SELECT id FROM bca_request_activity ORDER BY created_at ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}

func activityRecordToDomain(record *activityRecord) core.ActivityEntry {
	if record == nil {
		return core.ActivityEntry{}
	}
	return core.ActivityEntry{
		ID:          record.RequestID,
		Method:      record.Method,
		Path:        record.Path,
		State:       core.ExecutionState(record.State),
		FailedStage: record.FailedStage,
		StatusCode:  record.StatusCode,
		ErrorCode:   record.ErrorCode,
		DurationMS:  record.DurationMS,
		CreatedAt:   record.CreatedAt.UTC(),
	}
}
