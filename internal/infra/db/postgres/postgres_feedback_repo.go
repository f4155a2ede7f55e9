package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/repository"
)

var _ repository.FeedbackRepository = (*FeedbackRepo)(nil)

// FeedbackRepo stores message ratings and end-of-conversation
// satisfaction rows. message_id is NULL for satisfaction feedback.
type FeedbackRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

func (r *FeedbackRepo) Save(ctx context.Context, qx any, fb *model.Feedback) error {
	const q = `
INSERT INTO widget_feedback (id, session_id, message_id, kind, comment, created_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,NOW()))
ON CONFLICT (id) DO NOTHING;`
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	var msgID *string
	if fb.MessageID != "" {
		msgID = &fb.MessageID
	}
	if _, err := ex.Exec(ctx, q, fb.ID, fb.SessionID, msgID, string(fb.Kind), fb.Comment, fb.CreatedAt); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

func (r *FeedbackRepo) ListBySession(ctx context.Context, qx any, sessionID string) ([]*model.Feedback, error) {
	const q = `
SELECT id, session_id, message_id, kind, comment, created_at
  FROM widget_feedback WHERE session_id=$1 ORDER BY created_at ASC;`
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Feedback
	for rows.Next() {
		var fb model.Feedback
		var msgID sql.NullString
		var kind string
		if err := rows.Scan(&fb.ID, &fb.SessionID, &msgID, &kind, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.MessageID = msgID.String
		fb.Kind = model.FeedbackKind(kind)
		out = append(out, &fb)
	}
	return out, rows.Err()
}
