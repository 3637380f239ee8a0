// internal/repository/postgres/session_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"delivery-service/internal/domain/session"
	xerrors "delivery-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// SessionRepository reads the sessions table written by the auth flows.
//
//	sessions(
//	  id BIGSERIAL, user_id TEXT, session_token TEXT UNIQUE, refresh_token TEXT,
//	  status SMALLINT, expires_at BIGINT, queue_name TEXT, notification_token TEXT,
//	  device_type TEXT, voip_token TEXT, session_token_hash TEXT
//	)
type SessionRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

const sessionColumns = `
	id, user_id, session_token, COALESCE(refresh_token, ''), status,
	COALESCE(expires_at, 0), COALESCE(queue_name, ''), COALESCE(notification_token, ''),
	COALESCE(device_type, ''), COALESCE(voip_token, ''), COALESCE(session_token_hash, '')`

// liveStatuses are the statuses a delivery may target.
var liveStatuses = []int64{int64(session.StatusActive)}

// GetSessions returns every active, unexpired session of a user.
func (r *SessionRepository) GetSessions(ctx context.Context, userID string) ([]*session.Descriptor, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		  AND status = ANY($2::smallint[])
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, userID, pq.Array(liveStatuses), r.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Descriptor
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// GetSession finds an active, unexpired session by its token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (*session.Descriptor, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE session_token = $1
		  AND status = $2
		  AND (expires_at IS NULL OR expires_at > $3)
	`

	s, err := scanSession(r.db.QueryRow(ctx, query, token, int16(session.StatusActive), r.now().UnixMilli()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return s, nil
}

// AttachQueue records that queueName now holds the live socket of token.
func (r *SessionRepository) AttachQueue(ctx context.Context, token, queueName string) error {
	query := `UPDATE sessions SET queue_name = $2 WHERE session_token = $1`

	tag, err := r.db.Exec(ctx, query, token, queueName)
	if err != nil {
		return fmt.Errorf("failed to attach queue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// DetachQueue clears queue_name, unless another node has claimed the
// session in the meantime.
func (r *SessionRepository) DetachQueue(ctx context.Context, token, queueName string) error {
	query := `UPDATE sessions SET queue_name = NULL WHERE session_token = $1 AND queue_name = $2`

	if _, err := r.db.Exec(ctx, query, token, queueName); err != nil {
		return fmt.Errorf("failed to detach queue: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*session.Descriptor, error) {
	var s session.Descriptor
	err := row.Scan(
		&s.ID, &s.UserID, &s.SessionToken, &s.RefreshToken, &s.Status,
		&s.ExpiresAt, &s.QueueName, &s.NotificationToken,
		&s.DeviceType, &s.VoipToken, &s.SessionTokenHash,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
