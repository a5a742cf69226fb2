// Package room runs matches. Each room is a single goroutine that owns its
// world; everything else talks to it through its inbox.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/driftline/driftline/internal/game"
	"github.com/driftline/driftline/internal/level"
	"github.com/driftline/driftline/internal/protocol"
)

const inboxSize = 256

type joinCmd struct {
	req   JoinRequest
	reply chan error
}

type leaveCmd struct {
	playerID string
	conn     Conn
}

type inputCmd struct {
	playerID string
	in       game.Input
}

type startCmd struct {
	playerID string
}

// Room is one match. Its fields below the inbox are owned by the run loop.
type Room struct {
	ID    string
	Round int
	Seed  uint32

	opts    Options
	logger  *slog.Logger
	onClose func(*Room)

	inbox  chan any
	cancel context.CancelFunc
	done   chan struct{}

	status   atomic.Int32
	players  atomic.Int32
	stopCode atomic.Pointer[string]

	world      *world
	lastTick   time.Time
	emptySince time.Time
	finishedAt time.Time
	closeCode  string
}

func newRoom(id string, round int, opts Options) *Room {
	opts = opts.withDefaults()
	seed := level.HashSeed(fmt.Sprintf("%s:%d", id, round))
	w := newWorld(seed, opts.Game)
	r := &Room{
		ID:     id,
		Round:  round,
		Seed:   w.seed,
		opts:   opts,
		logger: opts.Logger.With("room", id, "round", round),
		inbox:  make(chan any, inboxSize),
		done:   make(chan struct{}),
		world:  w,
	}
	r.emptySince = opts.Now()
	return r
}

// start launches the run loop. The room stops when ctx is cancelled or when
// it decides to close itself.
func (r *Room) start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
}

func (r *Room) Status() Status   { return Status(r.status.Load()) }
func (r *Room) PlayerCount() int { return int(r.players.Load()) }

// Done is closed once the room has torn down.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Info() Info {
	return Info{ID: r.ID, Round: r.Round, Status: r.Status(), Players: r.PlayerCount(), Seed: r.Seed}
}

// Input forwards a validated input. If the inbox is full the input is
// dropped; the next one supersedes it anyway.
func (r *Room) Input(playerID string, in game.Input) {
	select {
	case r.inbox <- inputCmd{playerID: playerID, in: in}:
	case <-r.done:
	default:
		r.logger.Warn("inbox full, input dropped", "player", playerID)
	}
}

// Start is a player's request to begin the match.
func (r *Room) Start(playerID string) {
	select {
	case r.inbox <- startCmd{playerID: playerID}:
	case <-r.done:
	}
}

// Leave removes playerID if conn is still the connection registered for it.
// A close event from a superseded connection is ignored.
func (r *Room) Leave(playerID string, conn Conn) {
	select {
	case r.inbox <- leaveCmd{playerID: playerID, conn: conn}:
	case <-r.done:
	}
}

func (r *Room) join(ctx context.Context, req JoinRequest) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- joinCmd{req: req, reply: reply}:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		// The join may still land; make sure it does not leave a ghost.
		go r.Leave(req.PlayerID, req.Conn)
		return ctx.Err()
	}
}

// stop makes the loop exit. A non-empty code is sent to clients as an error
// frame before their connections are closed.
func (r *Room) stop(code string) {
	r.stopCode.Store(&code)
	r.cancel()
}

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

func (r *Room) run(ctx context.Context) {
	defer close(r.done)
	defer r.teardown()
	defer func() {
		if rec := recover(); rec != nil {
			r.closeCode = protocol.CodeInternal
			r.logger.Error("room panicked", "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	r.publish()
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeCode = protocol.CodeServerShutdown
			if code := r.stopCode.Load(); code != nil {
				r.closeCode = *code
			}
			return
		case cmd := <-r.inbox:
			r.handle(cmd)
		case <-ticker.C:
			if !r.tick(r.opts.Now()) {
				return
			}
		}
	}
}

// handle applies one inbox command.
func (r *Room) handle(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		c.reply <- r.handleJoin(c.req)
	case leaveCmd:
		r.handleLeave(c.playerID, c.conn)
	case inputCmd:
		if r.Status() == StatusRunning {
			r.world.applyInput(c.playerID, c.in)
		}
	case startCmd:
		if m, ok := r.world.members[c.playerID]; ok && r.Status() == StatusLobby {
			m.ready = true
			r.maybeStart()
		}
	}
}

func (r *Room) handleJoin(req JoinRequest) error {
	if r.Status() != StatusLobby {
		return ErrNotJoinable
	}
	w := r.world
	if old, ok := w.members[req.PlayerID]; ok {
		// Same player reconnecting before the match: keep the ship, swap the
		// connection. The old connection's close event is then stale.
		if old.conn != req.Conn {
			old.conn.Close("replaced by a newer connection")
			old.conn = req.Conn
		}
	} else {
		if len(w.members) >= r.opts.MaxPlayers {
			return ErrRoomFull
		}
		w.add(req.PlayerID, req.Name, req.Color, req.Conn)
		r.players.Store(int32(len(w.members)))
	}
	r.emptySince = time.Time{}

	r.broadcast(protocol.Encode(protocol.Joined{
		PlayerID: req.PlayerID,
		RoomID:   r.ID,
		Round:    r.Round,
		Seed:     r.Seed,
	}))
	r.logger.Info("player joined", "player", req.PlayerID, "players", len(w.members))
	r.publish()
	r.maybeStart()
	return nil
}

func (r *Room) handleLeave(playerID string, conn Conn) {
	m, ok := r.world.members[playerID]
	if !ok || m.conn != conn {
		r.logger.Debug("stale leave ignored", "player", playerID)
		return
	}
	r.world.remove(playerID)
	n := len(r.world.members)
	r.players.Store(int32(n))
	if n == 0 {
		r.emptySince = r.opts.Now()
	}
	r.broadcast(protocol.Encode(protocol.Left{PlayerID: playerID}))
	r.logger.Info("player left", "player", playerID, "players", n)
	r.publish()
	if r.Status() == StatusLobby {
		r.maybeStart()
	}
}

func (r *Room) maybeStart() {
	if r.Status() != StatusLobby {
		return
	}
	v := LobbyView{Players: len(r.world.members), MaxPlayers: r.opts.MaxPlayers}
	for _, m := range r.world.members {
		if m.ready {
			v.Ready++
		}
	}
	if !r.opts.Start(v) {
		return
	}
	r.status.Store(int32(StatusRunning))
	r.lastTick = r.opts.Now()
	r.broadcast(protocol.Encode(protocol.GameStart{}))
	r.logger.Info("match started", "players", v.Players)
	r.publish()
}

// tick runs once per ticker interval. Lobby and finished rooms only do
// housekeeping. The end check runs before the snapshot, so the tick that
// finishes a match sends gameEnd and no state. It returns false when the
// room should close.
func (r *Room) tick(now time.Time) bool {
	if len(r.world.members) == 0 && !r.emptySince.IsZero() && now.Sub(r.emptySince) >= r.opts.EmptyGrace {
		r.logger.Info("room empty, closing")
		return false
	}

	switch r.Status() {
	case StatusLobby:
		return true
	case StatusFinished:
		if now.Sub(r.finishedAt) >= r.opts.FinishedTTL {
			r.logger.Info("finished room expired")
			return false
		}
		return true
	}

	r.world.step(now.Sub(r.lastTick).Seconds())
	r.lastTick = now

	view := MatchView{
		Players: len(r.world.members),
		Alive:   r.world.alive(),
		Elapsed: time.Duration(r.world.elapsed * float64(time.Second)),
	}
	if done, reason := r.opts.End(view); done {
		r.finish(now, reason)
		return true
	}
	r.broadcastState(now)
	return true
}

func (r *Room) finish(now time.Time, reason string) {
	r.status.Store(int32(StatusFinished))
	r.finishedAt = now
	scores := r.world.scores()
	r.broadcast(protocol.Encode(protocol.GameEnd{Scores: scores, Reason: reason}))
	r.logger.Info("match finished", "reason", reason, "elapsed", r.world.elapsed, "scores", scores)
	r.publish()
}

func (r *Room) broadcastState(now time.Time) {
	snap := r.world.snapshot()
	snap.ServerTime = now.UnixMilli()
	snap.RoomID = r.ID
	snap.Round = r.Round
	snap.Status = r.Status().String()
	r.broadcast(protocol.Encode(protocol.State{Payload: snap}))
}

func (r *Room) broadcast(frame []byte) {
	for _, id := range r.world.ids {
		r.world.members[id].conn.Send(frame)
	}
}

func (r *Room) publish() {
	if r.opts.Observer != nil {
		r.opts.Observer.RoomUpdated(r.Info())
	}
}

func (r *Room) teardown() {
	reason := "room closed"
	if r.closeCode != "" {
		frame := protocol.Encode(protocol.Error{Code: r.closeCode, Message: reason})
		for _, m := range r.world.members {
			m.conn.Send(frame)
		}
		reason = r.closeCode
	}
	for _, m := range r.world.members {
		m.conn.Close(reason)
	}
	r.players.Store(0)
	if r.onClose != nil {
		r.onClose(r)
	}
	if r.opts.Observer != nil {
		r.opts.Observer.RoomClosed(r.Info())
	}
	r.logger.Info("room closed", "code", r.closeCode)
}
