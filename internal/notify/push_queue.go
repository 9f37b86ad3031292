// README: Redis due-queue for push notifications; device tokens gate permission.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"commute/internal/types"
)

const (
	dueKey       = "notify:due"
	payloadKey   = "notify:requests"
	devicePrefix = "notify:device:"
)

// PushQueue holds scheduled push notifications until the dispatcher sends them.
type PushQueue struct {
	rdb   *redis.Client
	clock types.Clock
}

func NewPushQueue(rdb *redis.Client, clock types.Clock) *PushQueue {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &PushQueue{rdb: rdb, clock: clock}
}

func deviceKey(userID types.ID) string { return devicePrefix + string(userID) }

func (q *PushQueue) RegisterDevice(ctx context.Context, userID types.ID, token string) error {
	return q.rdb.Set(ctx, deviceKey(userID), token, 0).Err()
}

func (q *PushQueue) UnregisterDevice(ctx context.Context, userID types.ID) error {
	return q.rdb.Del(ctx, deviceKey(userID)).Err()
}

// DeviceToken returns ErrPermissionDenied when the user has no registered device.
func (q *PushQueue) DeviceToken(ctx context.Context, userID types.ID) (string, error) {
	token, err := q.rdb.Get(ctx, deviceKey(userID)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && token == "") {
		return "", ErrPermissionDenied
	}
	return token, err
}

// Schedule replaces any pending request with the same id.
func (q *PushQueue) Schedule(ctx context.Context, req Request) error {
	if !req.TriggerAt.After(q.clock.Now()) {
		return ErrInvalidTriggerTime
	}
	if _, err := q.DeviceToken(ctx, req.UserID); err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = string(types.NewID())
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, payloadKey, req.ID, payload)
		pipe.ZAdd(ctx, dueKey, redis.Z{Score: float64(req.TriggerAt.Unix()), Member: req.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", req.ID, err)
	}
	return nil
}

func (q *PushQueue) Cancel(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, dueKey, members...)
		pipe.HDel(ctx, payloadKey, ids...)
		return nil
	})
	return err
}

// Pending returns the request with the given id if it has not fired yet.
func (q *PushQueue) Pending(ctx context.Context, id string) (Request, bool, error) {
	raw, err := q.rdb.HGet(ctx, payloadKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Request{}, false, nil
	}
	if err != nil {
		return Request{}, false, err
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, false, err
	}
	return req, true, nil
}

// claimScript pops due ids and their payloads in one step, so a request
// rescheduled between lookup and removal is never claimed early.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local out = {}
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	local raw = redis.call('HGET', KEYS[2], id)
	if raw then
		redis.call('HDEL', KEYS[2], id)
		table.insert(out, raw)
	end
end
return out
`)

// ClaimDue removes and returns up to limit requests due at now. Each request is
// claimed by exactly one caller.
func (q *PushQueue) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]Request, error) {
	if limit <= 0 {
		limit = -1
	}
	raws, err := claimScript.Run(ctx, q.rdb, []string{dueKey, payloadKey},
		strconv.FormatInt(now.Unix(), 10), limit).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("claim due: %w", err)
	}

	out := make([]Request, 0, len(raws))
	for _, raw := range raws {
		var req Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return out, fmt.Errorf("decode claimed request: %w", err)
		}
		out = append(out, req)
	}
	return out, nil
}
