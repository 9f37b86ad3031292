// README: Feedback store backed by PostgreSQL.
package feedback

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"commute/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, f Feedback) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_feedback (trip_id, user_id, positive, created_at)
		VALUES ($1, $2, $3, $4)`,
		string(f.TripID), string(f.UserID), f.Positive, f.CreatedAt,
	)
	return err
}

func (s *Store) Summarize(ctx context.Context, tripID types.ID) (Summary, error) {
	var sum Summary
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE positive), COUNT(*) FILTER (WHERE NOT positive)
		FROM trip_feedback
		WHERE trip_id = $1`, string(tripID),
	).Scan(&sum.Positive, &sum.Negative)
	return sum, err
}
