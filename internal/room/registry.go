package room

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
)

const shardCount = 16

type shard struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// Registry maps room ids to live rooms. Rooms are spread over shards so
// joins for unrelated rooms do not contend on one lock.
type Registry struct {
	opts   Options
	logger *slog.Logger
	shards [shardCount]*shard

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closedMu  sync.RWMutex
	closed    bool
}

func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	g := &Registry{
		opts:   opts,
		logger: opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range g.shards {
		g.shards[i] = &shard{rooms: make(map[string]*Room)}
	}
	return g
}

func (g *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return g.shards[h.Sum32()%shardCount]
}

// Join places a player in roomID, creating the room on first use. A request
// for a newer round replaces a finished room; one for an older round is
// rejected with ErrRoundStale.
func (g *Registry) Join(ctx context.Context, req JoinRequest) (*Room, error) {
	if req.Round < 1 {
		req.Round = 1
	}
	for attempt := 0; attempt < 3; attempt++ {
		r, err := g.acquire(req.RoomID, req.Round)
		if err != nil {
			return nil, err
		}
		err = r.join(ctx, req)
		if errors.Is(err, ErrClosed) {
			// Lost a race with teardown; the next acquire creates a fresh room.
			g.forget(r)
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, ErrClosed
}

func (g *Registry) acquire(id string, round int) (*Room, error) {
	g.closedMu.RLock()
	defer g.closedMu.RUnlock()
	if g.closed {
		return nil, ErrShuttingDown
	}

	s := g.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[id]; ok {
		select {
		case <-r.done:
		default:
			switch {
			case round < r.Round:
				return nil, ErrRoundStale
			case round == r.Round:
				return r, nil
			case r.Status() != StatusFinished:
				return nil, ErrNotJoinable
			}
			g.logger.Info("round superseded", "room", id, "old", r.Round, "new", round)
			r.stop("")
		}
	}

	r := newRoom(id, round, g.opts)
	r.onClose = g.forget
	s.rooms[id] = r
	g.wg.Add(1)
	r.start(g.ctx)
	go func() {
		<-r.done
		g.wg.Done()
	}()
	g.logger.Info("room created", "room", id, "round", round, "seed", r.Seed)
	return r, nil
}

// forget removes r from the registry if it is still the registered room for
// its id.
func (g *Registry) forget(r *Room) {
	s := g.shardFor(r.ID)
	s.mu.Lock()
	if s.rooms[r.ID] == r {
		delete(s.rooms, r.ID)
	}
	s.mu.Unlock()
}

func (g *Registry) Get(id string) (*Room, bool) {
	s := g.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Leave forwards a disconnect to the player's room. conn guards against a
// late close from a connection that was already replaced.
func (g *Registry) Leave(roomID, playerID string, conn Conn) {
	r, ok := g.Get(roomID)
	if !ok {
		g.logger.Warn("leave for unknown room", "room", roomID, "player", playerID)
		return
	}
	r.Leave(playerID, conn)
}

type Stats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
}

func (g *Registry) Stats() Stats {
	var st Stats
	for _, s := range g.shards {
		s.mu.Lock()
		st.Rooms += len(s.rooms)
		for _, r := range s.rooms {
			st.Players += r.PlayerCount()
		}
		s.mu.Unlock()
	}
	return st
}

// Shutdown stops every room, telling clients the server is going away, and
// waits for them to tear down or for ctx to expire. Calling it again is a
// no-op.
func (g *Registry) Shutdown(ctx context.Context) error {
	g.closeOnce.Do(func() {
		g.closedMu.Lock()
		g.closed = true
		g.closedMu.Unlock()
		g.cancel()
	})

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
