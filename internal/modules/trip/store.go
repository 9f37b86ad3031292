// README: Trip store backed by PostgreSQL.
package trip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

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

const tripColumns = `
	id, user_id, name,
	origin_lat, origin_lng, destination_lat, destination_lng, destination_name,
	arrival_time, time_zone, buffer_minutes, is_active, repeat_days,
	notifications, transport_mode, last_route_snapshot, expected_weather_summary,
	created_at, updated_at`

func (s *Store) Create(ctx context.Context, t *Trip) error {
	notifications, err := json.Marshal(t.Notifications)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO trips (
			id, user_id, name,
			origin_lat, origin_lng, destination_lat, destination_lng, destination_name,
			arrival_time, time_zone, buffer_minutes, is_active, repeat_days,
			notifications, transport_mode, created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $16
		)`,
		string(t.ID), string(t.UserID), t.Name,
		t.Origin.Lat, t.Origin.Lng, t.Destination.Lat, t.Destination.Lng, t.DestinationName,
		t.ArrivalTime, t.TimeZone, t.BufferMinutes, t.IsActive, weekdaysToInts(t.RepeatDays),
		notifications, string(t.TransportMode), t.CreatedAt,
	)
	return err
}

// FetchTrips returns the user's active trips ordered by arrival time.
func (s *Store) FetchTrips(ctx context.Context, userID types.ID) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `SELECT `+tripColumns+`
		FROM trips
		WHERE user_id = $1 AND is_active
		ORDER BY arrival_time`, string(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

func (s *Store) FetchTrip(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// UpdateTrip applies a partial update. Nil fields keep their stored value.
func (s *Store) UpdateTrip(ctx context.Context, id types.ID, u Update) error {
	var snapshot []byte
	if u.LastRouteSnapshot != nil {
		b, err := json.Marshal(u.LastRouteSnapshot)
		if err != nil {
			return err
		}
		snapshot = b
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET last_route_snapshot = COALESCE($2::jsonb, last_route_snapshot),
			expected_weather_summary = COALESCE($3, expected_weather_summary),
			is_active = COALESCE($4, is_active),
			arrival_time = COALESCE($5, arrival_time),
			updated_at = NOW()
		WHERE id = $1`,
		string(id), snapshot, u.ExpectedWeatherSummary, u.IsActive, u.ArrivalTime,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var (
		t             Trip
		id, userID    string
		mode          string
		repeatDays    []int32
		notifications []byte
		snapshot      []byte
		weather       *string
	)
	err := row.Scan(
		&id, &userID, &t.Name,
		&t.Origin.Lat, &t.Origin.Lng, &t.Destination.Lat, &t.Destination.Lng, &t.DestinationName,
		&t.ArrivalTime, &t.TimeZone, &t.BufferMinutes, &t.IsActive, &repeatDays,
		&notifications, &mode, &snapshot, &weather,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ID = types.ID(id)
	t.UserID = types.ID(userID)
	t.TransportMode = TransportMode(mode)
	t.RepeatDays = intsToWeekdays(repeatDays)
	t.ExpectedWeatherSummary = weather
	if len(notifications) > 0 {
		if err := json.Unmarshal(notifications, &t.Notifications); err != nil {
			return nil, err
		}
	}
	if len(snapshot) > 0 {
		var summary SnapshotSummary
		if err := json.Unmarshal(snapshot, &summary); err != nil {
			return nil, err
		}
		t.LastRouteSnapshot = &summary
	}
	return &t, nil
}

func weekdaysToInts(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func intsToWeekdays(days []int32) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}
