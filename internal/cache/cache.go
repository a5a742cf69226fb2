// Package cache publishes room presence to Redis so other services can see
// which rooms are live without talking to the game server.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyRoomState = "room:%s:state"
	KeyLiveRooms = "rooms:live"
)

// NewRedis connects and pings. Timeouts are short: presence is best effort
// and a slow server must not back up the publish queue for long.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ClientName:   "driftline-presence",
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     4,
		MaxRetries:   1,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return rdb, nil
}

func roomKey(id string) string { return fmt.Sprintf(KeyRoomState, id) }
