package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"support-widget-engine/internal/domain"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/repository"
	"support-widget-engine/internal/infra/redis"
)

// SessionRepo is the store of record for widget sessions. Postgres holds
// the truth; the Redis cache is best-effort and rebuilt on every read.
// is_expanded is nullable on purpose: NULL means the visitor has never
// toggled the widget, which maps to ExpandStateKnown=false.
var _ repository.SessionRepository = (*SessionRepo)(nil)

type SessionRepo struct {
	pool  *pgxpool.Pool
	cache *redis.SessionCache
}

func NewPostgresSessionRepo(pool *pgxpool.Pool, cache *redis.SessionCache) *SessionRepo {
	return &SessionRepo{pool: pool, cache: cache}
}

func (r *SessionRepo) Save(ctx context.Context, qx any, session *model.Session) error {
	const q = `
INSERT INTO widget_sessions (profile_id, session_id, status, is_expanded, user_name, user_email, user_phone, created_at, last_interaction_at, first_reply_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,COALESCE($8,NOW()),COALESCE($9,NOW()),$10)
ON CONFLICT (profile_id) DO UPDATE SET
  session_id = EXCLUDED.session_id,
  status = EXCLUDED.status,
  is_expanded = EXCLUDED.is_expanded,
  user_name = EXCLUDED.user_name,
  user_email = EXCLUDED.user_email,
  user_phone = EXCLUDED.user_phone,
  created_at = EXCLUDED.created_at,
  last_interaction_at = EXCLUDED.last_interaction_at,
  first_reply_at = EXCLUDED.first_reply_at;`
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	var expanded *bool
	if session.ExpandStateKnown {
		expanded = &session.IsExpanded
	}
	var name, email, phone *string
	if uc := session.UserContext; uc != nil {
		name, email, phone = &uc.Name, &uc.Email, &uc.Phone
	}
	var firstReply *time.Time
	if !session.FirstReplyAt.IsZero() {
		firstReply = &session.FirstReplyAt
	}
	if _, err = ex.Exec(ctx, q, session.ProfileID, session.ID, string(session.Status), expanded,
		name, email, phone, session.CreatedAt, session.LastInteractionAt, firstReply); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	// Persist any messages already on the aggregate (welcome message on create).
	for i := range session.Messages {
		if err := r.insertMessage(ctx, ex, session.ProfileID, &session.Messages[i]); err != nil {
			return err
		}
	}

	if r.cache != nil {
		_ = r.cache.Store(ctx, session)
	}
	return nil
}

func (r *SessionRepo) AppendMessage(ctx context.Context, qx any, profileID string, m *model.Message, isExpanded bool) error {
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if err := r.insertMessage(ctx, ex, profileID, m); err != nil {
		return err
	}

	// The expanded state rides along with every message so the session row
	// reflects what the visitor last saw.
	const q = `UPDATE widget_sessions SET last_interaction_at=NOW(), is_expanded=$3,
  first_reply_at = CASE WHEN first_reply_at IS NULL AND $2 = 'ai' THEN NOW() ELSE first_reply_at END
 WHERE profile_id=$1;`
	if _, err := ex.Exec(ctx, q, profileID, string(m.Type), isExpanded); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, profileID)
	}
	return nil
}

func (r *SessionRepo) insertMessage(ctx context.Context, ex executor, profileID string, m *model.Message) error {
	const q = `
INSERT INTO widget_messages (id, profile_id, type, content, is_pending, feedback_submitted, created_at)
VALUES ($1,$2,$3,$4,$5,$6,COALESCE($7,NOW()))
ON CONFLICT (id) DO NOTHING;`
	_, err := ex.Exec(ctx, q, m.ID, profileID, string(m.Type), m.Content, m.IsPending, m.FeedbackSubmitted, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ReplaceMessages rewrites the transcript atomically. When qx is not
// already a transaction it opens one, so a concurrent reader sees either
// the old list or the new one, never the gap between delete and insert.
func (r *SessionRepo) ReplaceMessages(ctx context.Context, qx any, profileID string, msgs []model.Message) error {
	if _, ok := qx.(pgx.Tx); !ok {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if err := r.replaceMessagesTx(ctx, tx, profileID, msgs); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	} else if err := r.replaceMessagesTx(ctx, qx.(pgx.Tx), profileID, msgs); err != nil {
		return err
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, profileID)
	}
	return nil
}

func (r *SessionRepo) replaceMessagesTx(ctx context.Context, tx pgx.Tx, profileID string, msgs []model.Message) error {
	if _, err := tx.Exec(ctx, `DELETE FROM widget_messages WHERE profile_id=$1;`, profileID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	for i := range msgs {
		if err := r.insertMessage(ctx, tx, profileID, &msgs[i]); err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx, `UPDATE widget_sessions SET last_interaction_at=NOW() WHERE profile_id=$1;`, profileID)
	return err
}

func (r *SessionRepo) FindByProfile(ctx context.Context, qx any, profileID string) (*model.Session, error) {
	// Hot path: only consult the cache outside a transaction, a tx must
	// read its own writes.
	if r.cache != nil && qx == nil {
		if s, err := r.cache.Get(ctx, profileID); err == nil {
			_ = r.cache.Extend(ctx, profileID)
			return s, nil
		}
	}

	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}

	const qs = `
SELECT session_id, status, is_expanded, user_name, user_email, user_phone, created_at, last_interaction_at, first_reply_at
  FROM widget_sessions WHERE profile_id=$1;`
	var (
		s          model.Session
		status     string
		expanded   sql.NullBool
		name       sql.NullString
		email      sql.NullString
		phone      sql.NullString
		firstReply sql.NullTime
	)
	if err := ex.QueryRow(ctx, qs, profileID).Scan(&s.ID, &status, &expanded, &name, &email, &phone,
		&s.CreatedAt, &s.LastInteractionAt, &firstReply); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.ProfileID = profileID
	s.Status = model.SessionStatus(status)
	if expanded.Valid {
		s.IsExpanded = expanded.Bool
		s.ExpandStateKnown = true
	}
	if name.Valid || email.Valid || phone.Valid {
		s.UserContext = &model.UserContext{Name: name.String, Email: email.String, Phone: phone.String}
	}
	if firstReply.Valid {
		s.FirstReplyAt = firstReply.Time
	}

	const qm = `
SELECT id, type, content, is_pending, feedback_submitted, created_at
  FROM widget_messages WHERE profile_id=$1 ORDER BY created_at ASC, id ASC;`
	rows, err := ex.Query(ctx, qm, profileID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Message
		var mtype string
		if err := rows.Scan(&m.ID, &mtype, &m.Content, &m.IsPending, &m.FeedbackSubmitted, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan msg: %w", err)
		}
		m.Type = model.MessageType(mtype)
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	if r.cache != nil && qx == nil {
		_ = r.cache.Store(ctx, &s)
	}
	return &s, nil
}

func (r *SessionRepo) UpdateStatus(ctx context.Context, qx any, profileID string, status model.SessionStatus) error {
	const q = `UPDATE widget_sessions SET status=$2, last_interaction_at=NOW() WHERE profile_id=$1;`
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, profileID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, profileID)
	}
	return nil
}

func (r *SessionRepo) UpdateWidgetState(ctx context.Context, qx any, profileID string, isExpanded bool) error {
	const q = `UPDATE widget_sessions SET is_expanded=$2 WHERE profile_id=$1;`
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, profileID, isExpanded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, profileID)
	}
	return nil
}

func (r *SessionRepo) UpdateUserContext(ctx context.Context, qx any, profileID string, uc *model.UserContext) error {
	const q = `UPDATE widget_sessions SET user_name=$2, user_email=$3, user_phone=$4 WHERE profile_id=$1;`
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	var name, email, phone *string
	if uc != nil {
		name, email, phone = &uc.Name, &uc.Email, &uc.Phone
	}
	tag, err := ex.Exec(ctx, q, profileID, name, email, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, profileID)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, qx any, profileID string) error {
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, `DELETE FROM widget_messages WHERE profile_id=$1;`, profileID); err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `DELETE FROM widget_sessions WHERE profile_id=$1;`, profileID)
	if err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, profileID)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) ListUnfinished(ctx context.Context, qx any) ([]*model.Session, error) {
	const q = `SELECT profile_id FROM widget_sessions WHERE status NOT IN ('ended','idle_timeout') ORDER BY last_interaction_at ASC;`
	ex, err := pickExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*model.Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.FindByProfile(ctx, qx, id)
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
