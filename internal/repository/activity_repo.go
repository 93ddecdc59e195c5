package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ldap-admin/internal/model"
)

type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Insert appends a record. The id and creation time are assigned by the database.
func (r *ActivityRepository) Insert(ctx context.Context, record model.ActivityRecord) (model.ActivityRecord, error) {
	details := []byte(record.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO activity_logs (user_id, action, details, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		record.UserID, record.Action, details, record.Status,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return model.ActivityRecord{}, fmt.Errorf("insert activity record: %w", err)
	}

	record.Details = details
	return record, nil
}

// Query returns one page of matching records, newest first, and the total number of
// matches. query.Page and query.PageSize must already be normalized.
func (r *ActivityRepository) Query(ctx context.Context, query model.ActivityQuery) ([]model.ActivityRecord, int, error) {
	where, args := activityWhere(
		condition{"action", "=", strings.TrimSpace(query.Action)},
		condition{"status", "=", strings.TrimSpace(query.Status)},
		condition{"user_id", "=", strings.TrimSpace(query.UserID)},
	)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM activity_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity records: %w", err)
	}

	offset := (query.Page - 1) * query.PageSize
	dataQuery := fmt.Sprintf(
		`SELECT id, user_id, action, details, status, created_at
		 FROM activity_logs %s
		 ORDER BY created_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, query.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query activity records: %w", err)
	}
	defer rows.Close()

	records := make([]model.ActivityRecord, 0, query.PageSize)
	for rows.Next() {
		var rec model.ActivityRecord
		var details []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Action, &details, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan activity record: %w", err)
		}
		if len(details) > 0 {
			rec.Details = details
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate activity records: %w", err)
	}

	return records, total, nil
}

// Delete removes the records matching every non-empty field of filter. An empty
// filter is rejected so that it can never wipe the table.
func (r *ActivityRepository) Delete(ctx context.Context, filter model.ActivityDeleteFilter) (int64, error) {
	if filter.IsEmpty() {
		return 0, fmt.Errorf("delete activity records: %w", model.ErrInvalidInput)
	}

	conds := []condition{
		{"action", "=", strings.TrimSpace(filter.Action)},
		{"status", "=", strings.TrimSpace(filter.Status)},
	}
	if filter.OlderThan != nil {
		conds = append(conds, condition{"created_at", "<", *filter.OlderThan})
	}

	where, args := activityWhere(conds...)
	tag, err := r.pool.Exec(ctx, "DELETE FROM activity_logs "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete activity records: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *ActivityRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM activity_logs")
	if err != nil {
		return 0, fmt.Errorf("delete all activity records: %w", err)
	}

	return tag.RowsAffected(), nil
}

type condition struct {
	column string
	op     string
	value  any
}

// activityWhere builds a WHERE clause from the conditions whose value is set.
func activityWhere(conds ...condition) (string, []any) {
	clauses := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))

	for _, c := range conds {
		if s, ok := c.value.(string); ok && s == "" {
			continue
		}
		args = append(args, c.value)
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", c.column, c.op, len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}
