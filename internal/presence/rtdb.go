// README: Presence over Firebase Realtime Database under /trip_presence/{tripID}.
package presence

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/db"

	"commute/internal/types"
)

const (
	sessionsPath = "trip_presence"
	settingsPath = "presence_settings"
)

type nodeStore interface {
	Set(ctx context.Context, path string, v any) error
	Get(ctx context.Context, path string, v any) error
	Update(ctx context.Context, path string, v map[string]any) error
}

type rtdbNodes struct {
	client *db.Client
}

func (n rtdbNodes) Set(ctx context.Context, path string, v any) error {
	return n.client.NewRef(path).Set(ctx, v)
}

func (n rtdbNodes) Get(ctx context.Context, path string, v any) error {
	return n.client.NewRef(path).Get(ctx, v)
}

func (n rtdbNodes) Update(ctx context.Context, path string, v map[string]any) error {
	return n.client.NewRef(path).Update(ctx, v)
}

type RTDB struct {
	nodes nodeStore
	clock types.Clock
}

func NewRTDB(client *db.Client) *RTDB {
	return &RTDB{nodes: rtdbNodes{client: client}, clock: types.RealClock{}}
}

type sessionNode struct {
	Attributes Attributes `json:"attributes"`
	State      State      `json:"state"`
}

func sessionPath(tripID types.ID) string { return sessionsPath + "/" + string(tripID) }

// AreEnabled reads /presence_settings/{userID}/enabled. Users without a
// setting are enabled.
func (r *RTDB) AreEnabled(ctx context.Context, userID types.ID) bool {
	var enabled *bool
	if err := r.nodes.Get(ctx, settingsPath+"/"+string(userID)+"/enabled", &enabled); err != nil {
		return false
	}
	return enabled == nil || *enabled
}

func (r *RTDB) Start(ctx context.Context, attrs Attributes, state State) error {
	if !r.AreEnabled(ctx, attrs.UserID) {
		return ErrActivitiesDisabled
	}
	state.UpdatedAt = r.clock.Now()
	if err := r.nodes.Set(ctx, sessionPath(attrs.TripID), sessionNode{Attributes: attrs, State: state}); err != nil {
		return fmt.Errorf("start presence %s: %w", attrs.TripID, err)
	}
	return nil
}

func (r *RTDB) Update(ctx context.Context, tripID types.ID, state State) error {
	state.UpdatedAt = r.clock.Now()
	if err := r.nodes.Update(ctx, sessionPath(tripID), map[string]any{"state": state}); err != nil {
		return fmt.Errorf("update presence %s: %w", tripID, err)
	}
	return nil
}

// End writes the final state; clients dismiss sessions marked ended.
func (r *RTDB) End(ctx context.Context, tripID types.ID, state State) error {
	state.Ended = true
	return r.Update(ctx, tripID, state)
}
