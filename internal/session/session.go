// Package session turns raw frames from one connection into validated calls
// on the player's room.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftline/driftline/internal/game"
	"github.com/driftline/driftline/internal/protocol"
)

// Sink receives validated player actions. The room implements it.
type Sink interface {
	Input(playerID string, in game.Input)
	Start(playerID string)
}

// Sender delivers a frame to the client without blocking. A false return
// means the frame was dropped.
type Sender interface {
	Send(frame []byte) bool
}

type Options struct {
	ShotCooldown time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
	OnDrop       func(err error) // called for every rejected frame
}

// Session is the per-connection state. HandleFrame is called from the
// connection's read loop; LastSeen may be read from any goroutine.
type Session struct {
	PlayerID string

	sink   Sink
	out    Sender
	logger *slog.Logger
	now    func() time.Time
	onDrop func(error)

	mu          sync.Mutex
	last        game.Input
	lastInputAt time.Time
	shots       *Cooldown

	lastSeen atomic.Int64
}

func New(playerID string, sink Sink, out Sender, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		PlayerID: playerID,
		sink:     sink,
		out:      out,
		logger:   opts.Logger.With("player", playerID),
		now:      opts.Now,
		onDrop:   opts.OnDrop,
		shots:    NewCooldown(opts.ShotCooldown),
	}
	s.lastSeen.Store(opts.Now().UnixNano())
	return s
}

// HandleFrame decodes one frame and dispatches it. Invalid frames are logged
// and dropped with no other effect.
func (s *Session) HandleFrame(data []byte) {
	now := s.now()
	msg, err := protocol.DecodeClient(data, now)
	if err != nil {
		s.logger.Debug("frame dropped", "err", err, "bytes", len(data))
		if s.onDrop != nil {
			s.onDrop(err)
		}
		return
	}
	s.lastSeen.Store(now.UnixNano())

	switch m := msg.(type) {
	case protocol.Input:
		s.sink.Input(s.PlayerID, s.acceptInput(m, now))
	case protocol.Ping:
		s.out.Send(protocol.Encode(protocol.Pong{T: m.T, ServerTime: now.UnixMilli()}))
	case protocol.Start:
		s.sink.Start(s.PlayerID)
	}
}

// acceptInput applies the shot cooldown: a shot inside the window is turned
// into a plain move.
func (s *Session) acceptInput(m protocol.Input, now time.Time) game.Input {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := game.Input{MoveX: m.MoveX, X: m.X}
	if m.Shoot && s.shots.Allow(now) {
		in.Shoot = true
		in.ShotID = m.ShotID
	}
	s.last = in
	s.lastInputAt = now
	return in
}

// LastInput returns the most recent forwarded input and when it arrived.
func (s *Session) LastInput() (game.Input, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastInputAt
}

// LastSeen is the arrival time of the last valid message.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Idle reports whether no valid message arrived within timeout.
func (s *Session) Idle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastSeen()) > timeout
}
