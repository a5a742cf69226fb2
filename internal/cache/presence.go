package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftline/driftline/internal/room"
)

const (
	presenceQueue = 1024
	writeTimeout  = 2 * time.Second
)

type presenceEvent struct {
	info   room.Info
	closed bool
	at     time.Time
}

// Presence mirrors room lifecycle into Redis. It satisfies room.Observer:
// rooms enqueue events without blocking and a single worker writes them.
// When the queue is full events are dropped; the next update for the room
// overwrites the hash anyway.
type Presence struct {
	rdb    *redis.Client
	logger *slog.Logger
	ttl    time.Duration

	events  chan presenceEvent
	dropped atomic.Int64
}

func NewPresence(rdb *redis.Client, logger *slog.Logger, ttl time.Duration) *Presence {
	return &Presence{
		rdb:    rdb,
		logger: logger,
		ttl:    ttl,
		events: make(chan presenceEvent, presenceQueue),
	}
}

func (p *Presence) RoomUpdated(info room.Info) {
	p.enqueue(presenceEvent{info: info, at: time.Now()})
}

func (p *Presence) RoomClosed(info room.Info) {
	p.enqueue(presenceEvent{info: info, closed: true, at: time.Now()})
}

func (p *Presence) enqueue(ev presenceEvent) {
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
	}
}

// Dropped counts events lost to a full queue.
func (p *Presence) Dropped() int64 { return p.dropped.Load() }

// Run writes queued events until ctx is cancelled, then flushes what is
// already queued.
func (p *Presence) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-p.events:
			p.write(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.events:
					p.write(context.Background(), ev)
				default:
					return nil
				}
			}
		}
	}
}

// A rematch reuses the room id, so both scripts compare rounds: an update
// never overwrites a newer round and a close only removes its own round.
var (
	publishScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'round') or '0')
if cur > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'round', ARGV[2], 'status', ARGV[3], 'players', ARGV[4], 'seed', ARGV[5], 'updatedAt', ARGV[6])
redis.call('PEXPIRE', KEYS[1], ARGV[7])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

	clearScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'round') or '0')
if cur > tonumber(ARGV[2]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return 1
`)
)

func (p *Presence) write(ctx context.Context, ev presenceEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	keys := []string{roomKey(ev.info.ID), KeyLiveRooms}
	var err error
	if ev.closed {
		err = clearScript.Run(ctx, p.rdb, keys, ev.info.ID, ev.info.Round).Err()
	} else {
		err = publishScript.Run(ctx, p.rdb, keys,
			ev.info.ID,
			ev.info.Round,
			ev.info.Status.String(),
			ev.info.Players,
			ev.info.Seed,
			ev.at.UnixMilli(),
			p.ttl.Milliseconds(),
		).Err()
	}
	if err != nil {
		p.logger.Warn("presence write failed", "room", ev.info.ID, "round", ev.info.Round, "err", err)
	}
}

// RoomRecord is a room as seen through Redis.
type RoomRecord struct {
	ID      string
	Round   int
	Status  string
	Players int
	Seed    uint32
}

// LiveRooms reads back every room currently published, sorted by id.
func LiveRooms(ctx context.Context, rdb *redis.Client) ([]RoomRecord, error) {
	ids, err := rdb.SMembers(ctx, KeyLiveRooms).Result()
	if err != nil {
		return nil, fmt.Errorf("list live rooms: %w", err)
	}
	sort.Strings(ids)

	out := make([]RoomRecord, 0, len(ids))
	for _, id := range ids {
		h, err := rdb.HGetAll(ctx, roomKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("read room %s: %w", id, err)
		}
		if len(h) == 0 {
			continue // expired hash, set entry not yet cleaned
		}
		rec := RoomRecord{ID: id, Status: h["status"]}
		rec.Round, _ = strconv.Atoi(h["round"])
		rec.Players, _ = strconv.Atoi(h["players"])
		seed, _ := strconv.ParseUint(h["seed"], 10, 32)
		rec.Seed = uint32(seed)
		out = append(out, rec)
	}
	return out, nil
}
