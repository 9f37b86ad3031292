// README: Preferences store backed by PostgreSQL. A user without a row gets defaults.
package preferences

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"commute/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Load(ctx context.Context, userID types.ID) (Preferences, error) {
	var (
		offsets []int32
		p       Preferences
	)
	err := s.db.QueryRow(ctx, `
		SELECT reminder_offsets, presence_enabled
		FROM user_preferences
		WHERE user_id = $1`, string(userID),
	).Scan(&offsets, &p.PresenceEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, err
	}
	for _, o := range offsets {
		p.ReminderOffsets = append(p.ReminderOffsets, int(o))
	}
	return p, nil
}

func (s *Store) Save(ctx context.Context, userID types.ID, p Preferences) error {
	offsets := make([]int32, len(p.ReminderOffsets))
	for i, o := range p.ReminderOffsets {
		offsets[i] = int32(o)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_preferences (user_id, reminder_offsets, presence_enabled, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET reminder_offsets = EXCLUDED.reminder_offsets,
			presence_enabled = EXCLUDED.presence_enabled,
			updated_at = NOW()`,
		string(userID), offsets, p.PresenceEnabled,
	)
	return err
}
