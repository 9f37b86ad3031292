// README: Redis in-app inbox; the fallback delivery path when push is not permitted.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"commute/internal/types"
)

const (
	inboxPrefix   = "notify:inbox:"
	inboxOwnerKey = "notify:inbox:owners"
)

// Inbox stores notifications per user; clients read the entries whose trigger
// time has passed. It never denies permission.
type Inbox struct {
	rdb *redis.Client
}

func NewInbox(rdb *redis.Client) *Inbox {
	return &Inbox{rdb: rdb}
}

func inboxKey(userID types.ID) string      { return inboxPrefix + string(userID) }
func inboxItemsKey(userID types.ID) string { return inboxPrefix + string(userID) + ":items" }

func (b *Inbox) Schedule(ctx context.Context, req Request) error {
	if req.ID == "" {
		req.ID = string(types.NewID())
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, inboxOwnerKey, req.ID, string(req.UserID))
		pipe.HSet(ctx, inboxItemsKey(req.UserID), req.ID, payload)
		pipe.ZAdd(ctx, inboxKey(req.UserID), redis.Z{Score: float64(req.TriggerAt.Unix()), Member: req.ID})
		return nil
	})
	return err
}

func (b *Inbox) Cancel(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		owner, err := b.rdb.HGet(ctx, inboxOwnerKey, id).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		user := types.ID(owner)
		_, err = b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, inboxKey(user), id)
			pipe.HDel(ctx, inboxItemsKey(user), id)
			pipe.HDel(ctx, inboxOwnerKey, id)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// List returns the user's notifications that are due at now, oldest first.
func (b *Inbox) List(ctx context.Context, userID types.ID, now time.Time) ([]Request, error) {
	ids, err := b.rdb.ZRangeByScore(ctx, inboxKey(userID), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	raws, err := b.rdb.HMGet(ctx, inboxItemsKey(userID), ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var req Request
		if err := json.Unmarshal([]byte(s), &req); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
