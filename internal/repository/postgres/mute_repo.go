// internal/repository/postgres/mute_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MuteRepository reads per-chat mute preferences.
//
//	chat_mutes(chat_id TEXT, user_id TEXT, muted_until TIMESTAMPTZ NULL, PRIMARY KEY (chat_id, user_id))
type MuteRepository struct {
	db *pgxpool.Pool
}

func NewMuteRepository(db *pgxpool.Pool) *MuteRepository {
	return &MuteRepository{db: db}
}

// ShouldMute reports whether userID has chatID muted right now.
func (r *MuteRepository) ShouldMute(ctx context.Context, chatID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_mutes
			WHERE chat_id = $1 AND user_id = $2
			  AND (muted_until IS NULL OR muted_until > NOW())
		)
	`

	var muted bool
	if err := r.db.QueryRow(ctx, query, chatID, userID).Scan(&muted); err != nil {
		return false, fmt.Errorf("failed to check mute: %w", err)
	}
	return muted, nil
}
